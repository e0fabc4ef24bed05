// README: Ledger tests: commission rounding, conservation, deposit resolution.
package ledger

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housecall/internal/types"
)

func TestCommissionFor(t *testing.T) {
	cases := []struct {
		price, want int64
	}{
		{5000, 500},
		{100, 10},
		{1, 0},   // 0.1 rounds down
		{5, 1},   // 0.5 rounds half-up
		{15, 2},  // 1.5 rounds half-up
		{999, 100},
		{1004, 100},
		{1005, 101},
	}
	for _, tc := range cases {
		if got := CommissionFor(tc.price); got != tc.want {
			t.Errorf("CommissionFor(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestAccrueAndConservation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupTestStore(t))

	require.NoError(t, svc.Accrue(ctx, "m1", "o1", types.Money{Amount: 5000, Currency: "KZT"}))
	require.NoError(t, svc.Accrue(ctx, "m1", "o2", types.Money{Amount: 3000, Currency: "KZT"}))

	b, err := svc.BalanceFor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), b.Earnings)
	assert.Equal(t, int64(800), b.PendingCommission)
	assert.Equal(t, b.Earnings+b.ApprovedDeposits-b.ApprovedCommission, b.Balance)
	assert.GreaterOrEqual(t, b.Balance, int64(0))

	// double accrual for the same order must be rejected by the store
	err = svc.Accrue(ctx, "m1", "o1", types.Money{Amount: 5000, Currency: "KZT"})
	assert.Error(t, err)

	b2, err := svc.BalanceFor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, b.Earnings, b2.Earnings, "failed accrual must not change the ledger")
}

func TestDepositFlow(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupTestStore(t))

	require.NoError(t, svc.Accrue(ctx, "m1", "o1", types.Money{Amount: 5000, Currency: "KZT"}))

	dep, err := svc.RequestDeposit(ctx, "m1", 300)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, dep.Status)

	// pending deposit has no effect yet
	debt, err := svc.PendingCommission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), debt)

	resolved, err := svc.ResolveDeposit(ctx, dep.ID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, resolved.Status)

	debt, err = svc.PendingCommission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), debt)

	// re-resolving is an error, not a silent second application
	_, err = svc.ResolveDeposit(ctx, dep.ID, false)
	assert.ErrorIs(t, err, ErrResolved)

	// rejected deposits never touch the balance
	dep2, err := svc.RequestDeposit(ctx, "m1", 1000)
	require.NoError(t, err)
	_, err = svc.ResolveDeposit(ctx, dep2.ID, false)
	require.NoError(t, err)
	debt, err = svc.PendingCommission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), debt)
}

func TestPendingCommissionFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupTestStore(t))

	require.NoError(t, svc.Accrue(ctx, "m1", "o1", types.Money{Amount: 1000, Currency: "KZT"}))

	// deposit exceeding the debt floors the figure at zero
	dep, err := svc.RequestDeposit(ctx, "m1", 900)
	require.NoError(t, err)
	_, err = svc.ResolveDeposit(ctx, dep.ID, true)
	require.NoError(t, err)

	debt, err := svc.PendingCommission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), debt)
}

func TestRequestDepositValidation(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.RequestDeposit(context.Background(), "m1", 0)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.RequestDeposit(context.Background(), "m1", -5)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.RequestDeposit(context.Background(), "", 100)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestResolveUnknownEntry(t *testing.T) {
	svc := NewService(setupTestStore(t))
	_, err := svc.ResolveDeposit(context.Background(), "missing", true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("HC_TEST_DSN")
	if dsn == "" {
		t.Skip("HC_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ledger_entries"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	content, err := os.ReadFile(filepath.Join(dir, "migrations", "0001_init.up.sql"))
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
