package cli_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tradebook/trade-service/internal/cli"
	"github.com/tradebook/trade-service/internal/model"
	"github.com/tradebook/trade-service/internal/notify"
	"github.com/tradebook/trade-service/internal/store"
	"github.com/tradebook/trade-service/internal/trade"
)

const tradesPath = "/api/trades"

// newTestEnv serves the trade API over the fixture dataset and returns its
// base URL.
func newTestEnv(t *testing.T) (string, *store.MemoryStore) {
	t.Helper()
	t.Setenv("TRADES_API_BASE", "")
	ms := store.NewMemoryStore(model.Fixtures())
	srv := httptest.NewServer(trade.NewRouter(trade.NewService(ms, notify.NewBus()), nil, tradesPath))
	t.Cleanup(srv.Close)
	return srv.URL + tradesPath, ms
}

// run executes tradectl with args against base, feeding stdin.
func run(t *testing.T, base, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-base", base, "--config", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestList_SortedPage(t *testing.T) {
	base, _ := newTestEnv(t)

	out, err := run(t, base, "", "list", "--page-size", "3", "--sort", "version:desc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header, 3 rows and footer, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "T003") {
		t.Errorf("expected T003 first, got %q", lines[1])
	}
	if !strings.Contains(out, "page 1 of 3 (7 trades)") {
		t.Errorf("unexpected footer:\n%s", out)
	}
}

func TestList_Filter(t *testing.T) {
	base, _ := newTestEnv(t)

	out, err := run(t, base, "", "list", "--filter", "bookId:equals:B3", "--filter", "tradeId:startsWith:T0")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "T002") || strings.Contains(out, "T2 ") {
		t.Errorf("unexpected rows:\n%s", out)
	}
	if !strings.Contains(out, "(1 trades)") {
		t.Errorf("expected a single match:\n%s", out)
	}
}

func TestList_BadFlags(t *testing.T) {
	base, _ := newTestEnv(t)

	if _, err := run(t, base, "", "list", "--sort", "price"); err == nil {
		t.Error("expected unknown sort field to fail")
	}
	if _, err := run(t, base, "", "list", "--filter", "bookId"); err == nil {
		t.Error("expected malformed filter to fail")
	}
	if _, err := run(t, base, "", "list", "--page-size", "0"); err == nil {
		t.Error("expected zero page size to fail")
	}
}

func TestSubmit_NewTrade(t *testing.T) {
	base, ms := newTestEnv(t)

	out, err := run(t, base, "", "submit", "--trade-id", "T009", "--counterparty", "CP-9", "--book", "B9", "--maturity", "2099-06-30")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "Trade T009 v1 saved") {
		t.Errorf("unexpected output:\n%s", out)
	}
	versions, _ := ms.TradeVersions(context.Background(), "T009")
	if len(versions) != 1 || versions[0].MaturityDate != "2099-06-30" {
		t.Errorf("trade not stored: %+v", versions)
	}
}

func TestSubmit_ReplaceDeclined(t *testing.T) {
	base, ms := newTestEnv(t)

	out, err := run(t, base, "n\n", "submit", "--trade-id", "T001", "--version", "2", "--counterparty", "CP-9", "--book", "B9", "--maturity", "2099-06-30")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "Do you want to replace it?") || !strings.Contains(out, "Replace cancelled.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	versions, _ := ms.TradeVersions(context.Background(), "T001")
	for _, v := range versions {
		if v.BookID != "B1" {
			t.Errorf("declined replace changed the store: %+v", v)
		}
	}
}

func TestSubmit_ReplaceConfirmed(t *testing.T) {
	base, _ := newTestEnv(t)

	out, err := run(t, base, "y\n", "submit", "--trade-id", "T001", "--version", "2", "--counterparty", "CP-9", "--book", "B9", "--maturity", "2099-06-30")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "Trade T001 v2 replaced") || !strings.Contains(out, "created 01/12/2024") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSubmit_HigherVersionBlocked(t *testing.T) {
	base, _ := newTestEnv(t)

	_, err := run(t, base, "", "submit", "--trade-id", "T2", "--version", "1", "--counterparty", "CP-9", "--book", "B9", "--maturity", "2099-06-30")
	if err == nil || !strings.Contains(err.Error(), "Submission blocked") {
		t.Errorf("expected blocked submission, got %v", err)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	base, _ := newTestEnv(t)

	_, err := run(t, base, "", "submit", "--trade-id", "T010", "--version", "0", "--maturity", "2000-01-01")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bookId: required", "counterPartyId: required", "maturityDate: Maturity must be today or later", "version:"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestEdit_PrefillsAndLocks(t *testing.T) {
	base, _ := newTestEnv(t)

	out, err := run(t, base, "", "edit", "T001", "--version", "3", "--maturity", "2099-01-01")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "Trade T001 v3 saved") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := run(t, base, "", "edit", "T001", "--book", "B9"); err == nil || !strings.Contains(err.Error(), "locked") {
		t.Errorf("expected locked field error, got %v", err)
	}
	if _, err := run(t, base, "", "edit", "T404"); err == nil {
		t.Error("expected unknown trade to fail")
	}
}

func TestHealth(t *testing.T) {
	base, _ := newTestEnv(t)

	out, err := run(t, base, "", "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("unexpected output %q", out)
	}
}
