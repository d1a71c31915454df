package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"rtadmin/internal/core"
	ports "rtadmin/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets is a minimal stand-in for the Sheets v4 REST surface the
// ledger uses: values get/update/append, spreadsheet get and row deletion.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	ids    map[string]int64
	gets   int
	writes []string
	// reject answers every write with 400 INVALID_ARGUMENT.
	reject bool
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		tabs: map[string][][]any{"Pembayaran": nil, "Pengeluaran": nil},
		ids:  map[string]int64{"Pembayaran": 11, "Pengeluaran": 22},
	}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case path == "" && r.Method == http.MethodGet:
		var sheets []map[string]any
		for title, id := range f.ids {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case path == ":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			dr := rq.DeleteDimension.Range
			for title, id := range f.ids {
				if id != dr.SheetId {
					continue
				}
				rows := f.tabs[title]
				f.tabs[title] = append(rows[:dr.StartIndex:dr.StartIndex], rows[dr.EndIndex:]...)
			}
		}
		f.writes = append(f.writes, "delete")
		_, _ = w.Write([]byte(`{}`))

	case strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		appendCall := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		title, cell, _ := strings.Cut(rng, "!")

		switch {
		case f.reject && r.Method != http.MethodGet:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid values[1][0]","status":"INVALID_ARGUMENT"}}`))
		case r.Method == http.MethodGet:
			f.gets++
			_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.tabs[title]})
		case appendCall:
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			f.tabs[title] = append(f.tabs[title], vr.Values...)
			f.writes = append(f.writes, "append")
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			var vr gsheet.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			var n int
			for _, ch := range strings.TrimPrefix(cell, "A") {
				n = n*10 + int(ch-'0')
			}
			f.tabs[title][n-1] = vr.Values[0]
			f.writes = append(f.writes, "update")
			_, _ = w.Write([]byte(`{}`))
		}

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sid",
		ClientOptions: []goption.ClientOption{
			goption.WithHTTPClient(srv.Client()),
			goption.WithEndpoint(srv.URL + "/"),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultSheetNames(t *testing.T) {
	c := newClient(nil, "sid", "", "  ")
	if got, _ := c.sheetFor(ports.KindPayment); got != "Pembayaran" {
		t.Errorf("payments sheet = %q", got)
	}
	if got, _ := c.sheetFor(ports.KindExpense); got != "Pengeluaran" {
		t.Errorf("expenses sheet = %q", got)
	}
	if _, err := c.sheetFor("resident"); !errors.Is(err, ports.ErrInvalidRow) {
		t.Errorf("unknown kind: %v", err)
	}
}

func TestClient_UpsertAppendsThenUpdates(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	ctx := context.Background()

	exp := core.Expense{ID: 5, Name: "Lampu jalan", Amount: 150000, Date: "2024-01-05"}
	if err := c.Upsert(ctx, ports.ExpenseRow(exp)); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	exp.Amount = 175000
	if err := c.Upsert(ctx, ports.ExpenseRow(exp)); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	rows := fake.tabs["Pengeluaran"]
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %v", rows)
	}
	if rows[0][0] != "ID" {
		t.Errorf("header row missing: %v", rows[0])
	}
	if rows[1][3] != "175000" {
		t.Errorf("row not updated in place: %v", rows[1])
	}
	if strings.Join(fake.writes, ",") != "append,update" {
		t.Errorf("writes = %v", fake.writes)
	}
}

func TestClient_RejectedWriteIsInvalidRow(t *testing.T) {
	fake := newFakeSheets()
	fake.reject = true
	c := newTestClient(t, fake)

	err := c.Upsert(context.Background(), ports.ExpenseRow(core.Expense{ID: 6, Name: "Cat", Amount: 1, Date: "2024-01-05"}))
	if !errors.Is(err, ports.ErrInvalidRow) {
		t.Fatalf("Upsert() error = %v, want ErrInvalidRow", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.writes) != 0 {
		t.Errorf("writes = %v", fake.writes)
	}
}

func TestClient_DeleteRemovesRow(t *testing.T) {
	fake := newFakeSheets()
	fake.tabs["Pembayaran"] = [][]any{
		{"ID", "Tanggal"},
		{"1", "2024-01-01"},
		{"2", "2024-01-02"},
	}
	c := newTestClient(t, fake)
	ctx := context.Background()

	if err := c.Delete(ctx, ports.KindPayment, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, ports.KindPayment, 99); err != nil {
		t.Fatalf("Delete() of a missing id should be a no-op, got %v", err)
	}

	rows, err := c.Rows(ctx, ports.KindPayment)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("unexpected rows after delete: %+v", rows)
	}
}

func TestRowCacheAvoidsRereads(t *testing.T) {
	fake := newFakeSheets()
	fake.tabs["Pengeluaran"] = [][]any{{"ID"}, {"4"}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		row, used, err := c.locate(ctx, "Pengeluaran", 4)
		if err != nil || row != 2 || used != 2 {
			t.Fatalf("locate() = %d, %d, %v", row, used, err)
		}
	}
	fake.mu.Lock()
	gets := fake.gets
	fake.mu.Unlock()
	if gets != 1 {
		t.Errorf("expected a single read while the cache is valid, got %d", gets)
	}

	c.InvalidateRowCache()
	if _, _, err := c.locate(ctx, "Pengeluaran", 4); err != nil {
		t.Fatal(err)
	}
	fake.mu.Lock()
	gets = fake.gets
	fake.mu.Unlock()
	if gets != 2 {
		t.Errorf("expected a reread after invalidation, got %d", gets)
	}
}

func TestRowCacheExpiration(t *testing.T) {
	c := newClient(nil, "sid", "", "")
	c.cacheValidDuration = 50 * time.Millisecond

	c.mu.Lock()
	c.rowIndex["Pengeluaran"] = map[int64]int{1: 2}
	c.cacheExpiresAt["Pengeluaran"] = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	time.Sleep(75 * time.Millisecond)

	c.mu.Lock()
	valid := time.Now().Before(c.cacheExpiresAt["Pengeluaran"])
	c.mu.Unlock()
	if valid {
		t.Error("cache should be expired after TTL")
	}
}

func TestClient_ConcurrentDeletesAndUpsertsKeepRowsAligned(t *testing.T) {
	fake := newFakeSheets()
	c := newTestClient(t, fake)
	ctx := context.Background()

	for id := int64(1); id <= 8; id++ {
		exp := core.Expense{ID: id, Name: "Iuran", Amount: 1000, Date: "2024-02-01"}
		if err := c.Upsert(ctx, ports.ExpenseRow(exp)); err != nil {
			t.Fatalf("seed Upsert(%d) error = %v", id, err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for id := int64(1); id <= 8; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if id%2 == 1 {
				errs <- c.Delete(ctx, ports.KindExpense, id)
				return
			}
			exp := core.Expense{ID: id, Name: "Iuran", Amount: core.Rupiah(id * 1000), Date: "2024-02-01"}
			errs <- c.Upsert(ctx, ports.ExpenseRow(exp))
		}(id)
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exp := core.Expense{ID: 100, Name: "Perbaikan Pos", Amount: 50000, Date: "2024-02-03"}
			errs <- c.Upsert(ctx, ports.ExpenseRow(exp))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write error = %v", err)
		}
	}

	rows, err := c.Rows(ctx, ports.KindExpense)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	seen := make(map[int64]string)
	for _, r := range rows {
		if _, dup := seen[r.ID]; dup {
			t.Errorf("id %d written twice", r.ID)
		}
		seen[r.ID] = r.Cells[3]
	}
	want := map[int64]string{2: "2000", 4: "4000", 6: "6000", 8: "8000", 100: "50000"}
	if len(seen) != len(want) {
		t.Fatalf("rows = %v, want ids %v", seen, want)
	}
	for id, amount := range want {
		if seen[id] != amount {
			t.Errorf("id %d amount = %q, want %q", id, seen[id], amount)
		}
	}
}
