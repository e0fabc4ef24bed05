// README: Order service tests (transition table + lifecycle flow).
package order

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"housecall/internal/types"
)

// TestCanTransition verifies the state machine transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusNew, StatusAccepted, true},
		{StatusAccepted, StatusConfirmed, true},
		{StatusConfirmed, StatusOnTheWay, true},
		{StatusOnTheWay, StatusStarted, true},
		{StatusStarted, StatusCompleted, true},
		{StatusCompleted, StatusPaid, true},
		// cancellation is reachable only from new
		{StatusNew, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusStarted, StatusCancelled, false},
		// no backward transitions, no state reachable twice
		{StatusAccepted, StatusNew, false},
		{StatusConfirmed, StatusAccepted, false},
		{StatusPaid, StatusCompleted, false},
		// no skipping states
		{StatusNew, StatusConfirmed, false},
		{StatusAccepted, StatusOnTheWay, false},
		{StatusConfirmed, StatusStarted, false},
		{StatusAccepted, StatusPaid, false},
		// terminal states have no outgoing transitions
		{StatusPaid, StatusNew, false},
		{StatusCancelled, StatusNew, false},
		{StatusCancelled, StatusAccepted, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// TestTransitionTotality: every status paired with every status must agree
// with the table; anything outside the allowed successor set is rejected.
func TestTransitionTotality(t *testing.T) {
	all := []Status{StatusNew, StatusAccepted, StatusConfirmed, StatusOnTheWay,
		StatusStarted, StatusCompleted, StatusPaid, StatusCancelled}
	for _, from := range all {
		allowed := map[Status]bool{}
		for _, s := range AllowedTransitions[from] {
			allowed[s] = true
		}
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestVisitFlow(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil, nil)

	o, err := svc.Create(ctx, CreateCommand{
		ClientID:    "c1",
		ServiceType: "injection",
		City:        "Almaty",
		District:    "Bostandyk",
		Address:     "Abay ave 10",
		ScheduledAt: time.Now().Add(2 * time.Hour),
		Price:       &types.Money{Amount: 5000, Currency: "KZT"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if o.Status != StatusNew || o.MedicID != nil {
		t.Fatalf("fresh order: status=%s medic=%v", o.Status, o.MedicID)
	}

	if _, err := svc.Accept(ctx, o.ID, "m1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// only the client confirms
	if _, err := svc.Advance(ctx, o.ID, "m1", StatusConfirmed); err != ErrForbidden {
		t.Fatalf("medic confirm: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Advance(ctx, o.ID, "c1", StatusConfirmed); err != nil {
		t.Fatalf("client confirm: %v", err)
	}

	// only the bound medic drives the visit
	if _, err := svc.Advance(ctx, o.ID, "c1", StatusOnTheWay); err != ErrForbidden {
		t.Fatalf("client on_the_way: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Advance(ctx, o.ID, "m2", StatusOnTheWay); err != ErrForbidden {
		t.Fatalf("stranger on_the_way: got %v, want ErrForbidden", err)
	}
	for _, target := range []Status{StatusOnTheWay, StatusStarted, StatusCompleted, StatusPaid} {
		if _, err := svc.Advance(ctx, o.ID, "m1", target); err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
	}

	got, err := svc.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPaid {
		t.Fatalf("final status %s, want paid", got.Status)
	}
	if got.MedicID == nil || *got.MedicID != "m1" {
		t.Fatalf("medic binding lost: %v", got.MedicID)
	}
	if got.CompletedAt == nil || got.AcceptedAt == nil {
		t.Fatal("timestamps not recorded")
	}
	if !got.ConfirmedByClient {
		t.Fatal("confirmed_by_client not set")
	}
}

func TestAdvanceSkippingState(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil, nil)

	o := mustCreate(t, svc, "c1", nil)
	if _, err := svc.Accept(ctx, o.ID, "m1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// confirmed has not happened yet
	if _, err := svc.Advance(ctx, o.ID, "m1", StatusStarted); err != ErrInvalidTransition {
		t.Fatalf("skip to started: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Advance(ctx, o.ID, "m1", StatusAccepted); err != ErrInvalidTransition {
		t.Fatalf("re-accept via advance: got %v, want ErrInvalidTransition", err)
	}
}

func TestCancelBoundary(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil, nil)

	o := mustCreate(t, svc, "c1", nil)

	// only the creator may cancel
	if _, err := svc.Cancel(ctx, o.ID, "c2"); err != ErrForbidden {
		t.Fatalf("foreign cancel: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Cancel(ctx, o.ID, "c1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// cancelled is terminal: accepting it is a transition violation, not a
	// lost race, since nobody was ever assigned
	if _, err := svc.Accept(ctx, o.ID, "m1"); err != ErrInvalidTransition {
		t.Fatalf("accept cancelled: got %v, want ErrInvalidTransition", err)
	}

	// once accepted, cancel fails with InvalidTransition
	o2 := mustCreate(t, svc, "c1", nil)
	if _, err := svc.Accept(ctx, o2.ID, "m1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Cancel(ctx, o2.ID, "c1"); err != ErrInvalidTransition {
		t.Fatalf("cancel accepted: got %v, want ErrInvalidTransition", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil, nil)
	_, err := svc.Create(context.Background(), CreateCommand{ClientID: "c1", City: "Almaty"})
	if err != ErrBadRequest {
		t.Fatalf("got %v, want ErrBadRequest", err)
	}
	neg := &types.Money{Amount: -100, Currency: "KZT"}
	_, err = svc.Create(context.Background(), CreateCommand{
		ClientID: "c1", ServiceType: "injection", City: "Almaty",
		District: "Bostandyk", Address: "x", Price: neg,
	})
	if err != ErrBadRequest {
		t.Fatalf("negative price: got %v, want ErrBadRequest", err)
	}
}

func TestAcceptUnknownOrder(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store, nil, nil)
	if _, err := svc.Accept(context.Background(), "no-such-order", "m1"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func mustCreate(t *testing.T, svc *Service, clientID types.ID, price *types.Money) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateCommand{
		ClientID:    clientID,
		ServiceType: "injection",
		City:        "Almaty",
		District:    "Bostandyk",
		Address:     "Abay ave 10",
		ScheduledAt: time.Now().Add(time.Hour),
		Price:       price,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func setupTestStore(t *testing.T) *Store {
	return NewStore(setupTestPool(t))
}

func setupTestPool(t *testing.T) *pgxpool.Pool {
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

	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_state_events, orders, chat_messages, ledger_entries, medics"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.up.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
