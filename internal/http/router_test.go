// README: Router tests: auth, role gates, and error taxonomy over HTTP.
package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"housecall/internal/auth"
	"housecall/internal/modules/chat"
	"housecall/internal/modules/ledger"
	"housecall/internal/modules/order"
	"housecall/internal/types"
)

// stubVerifier resolves tokens of the form "<role>:<user-id>"; everything
// else is rejected. Keeps router tests off the JWT machinery.
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (auth.Identity, error) {
	role, id, ok := strings.Cut(token, ":")
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return auth.Identity{UserID: types.ID(id), Role: types.Role(role)}, nil
}

// Handlers reject on auth and validation before touching storage, so the
// services can run storeless here.
func buildTestRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterDeps{
		Orders:   order.NewService(nil, nil, nil),
		Chat:     chat.NewService(nil, nil),
		Ledger:   ledger.NewService(nil),
		Verifier: stubVerifier{},
		Log:      zap.NewNop(),
	})
}

func doRequest(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthNoAuth(t *testing.T) {
	r := buildTestRouter()
	w := doRequest(t, r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := buildTestRouter()

	w := doRequest(t, r, http.MethodGet, "/api/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)

	w = doRequest(t, r, http.MethodGet, "/api/orders", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGates(t *testing.T) {
	r := buildTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"medic cannot create orders", http.MethodPost, "/api/orders", "medic:m1", http.StatusForbidden},
		{"client cannot accept", http.MethodPost, "/api/orders/o1/accept", "client:c1", http.StatusForbidden},
		{"medic cannot cancel", http.MethodPost, "/api/orders/o1/cancel", "medic:m1", http.StatusForbidden},
		{"client has no balance", http.MethodGet, "/api/balance", "client:c1", http.StatusForbidden},
		{"client cannot poll open orders", http.MethodGet, "/api/orders/available", "client:c1", http.StatusForbidden},
		{"medic cannot resolve deposits", http.MethodPost, "/api/deposits/d1/resolve", "medic:m1", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, r, tc.method, tc.path, tc.token, "{}")
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"forbidden"`)
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	r := buildTestRouter()

	w := doRequest(t, r, http.MethodPost, "/api/orders", "client:c1", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation"`)

	// well-formed but empty payload fails service validation
	w = doRequest(t, r, http.MethodPost, "/api/orders", "client:c1", "{}")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation"`)

	// negative price is rejected before anything is stored
	body := `{"service_type":"nurse","city":"Almaty","district":"Bostandyk","address":"Abay 10","scheduled_at":"2025-06-01T10:00:00Z","price":-100}`
	w = doRequest(t, r, http.MethodPost, "/api/orders", "client:c1", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvanceValidation(t *testing.T) {
	r := buildTestRouter()

	w := doRequest(t, r, http.MethodPost, "/api/orders/o1/advance", "medic:m1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation"`)
}

func TestRequestDepositValidationHTTP(t *testing.T) {
	r := buildTestRouter()

	w := doRequest(t, r, http.MethodPost, "/api/deposits", "medic:m1", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation"`)
}

func TestCommissionLookupAuthorization(t *testing.T) {
	r := buildTestRouter()

	// a medic may only read their own figure
	w := doRequest(t, r, http.MethodGet, "/api/medics/m2/commission", "medic:m1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// clients have no business here at all
	w = doRequest(t, r, http.MethodGet, "/api/medics/m1/commission", "client:c1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
