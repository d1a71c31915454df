package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "rtadmin/internal/log"
	ports "rtadmin/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheDuration = 2 * time.Minute

// Options selects the spreadsheet and the tab used per ledger kind.
type Options struct {
	SpreadsheetID string
	PaymentsSheet string
	ExpensesSheet string
	// ClientOptions are passed to the Sheets service; credentials are read
	// from the environment when empty.
	ClientOptions []goption.ClientOption
	Logger        *applog.Logger
}

// Client mirrors ledger rows into Google Sheets, keyed by the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetNames    map[string]string
	logger        *applog.Logger

	// id -> 1-based row number, per sheet title
	mu                 sync.Mutex
	rowIndex           map[string]map[int64]int
	cachedRowCount     map[string]int
	cacheExpiresAt     map[string]time.Time
	cacheValidDuration time.Duration
	sheetIDs           map[string]int64

	// writeLocks serialize locate -> write per sheet, since a delete shifts
	// the row numbers every other cached index relies on.
	writeLocks map[string]*sync.Mutex
}

var _ ports.Ledger = (*Client)(nil)

// New creates a Sheets ledger client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := serviceAccountCredentials(ctx, logger)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := newClient(svc, opts.SpreadsheetID, opts.PaymentsSheet, opts.ExpensesSheet)
	c.logger = logger
	logger.InfoContext(ctx, "Google Sheets ledger ready",
		"spreadsheet_id", opts.SpreadsheetID,
		"payments_sheet", c.sheetNames[ports.KindPayment],
		"expenses_sheet", c.sheetNames[ports.KindExpense])
	return c, nil
}

func newClient(svc *gsheet.Service, spreadsheetID, paymentsSheet, expensesSheet string) *Client {
	if strings.TrimSpace(paymentsSheet) == "" {
		paymentsSheet = "Pembayaran"
	}
	if strings.TrimSpace(expensesSheet) == "" {
		expensesSheet = "Pengeluaran"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetNames: map[string]string{
			ports.KindPayment: strings.TrimSpace(paymentsSheet),
			ports.KindExpense: strings.TrimSpace(expensesSheet),
		},
		logger:             applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentSheets),
		rowIndex:           make(map[string]map[int64]int),
		cachedRowCount:     make(map[string]int),
		cacheExpiresAt:     make(map[string]time.Time),
		cacheValidDuration: defaultCacheDuration,
		sheetIDs:           make(map[string]int64),
		writeLocks:         make(map[string]*sync.Mutex),
	}
}

// serviceAccountCredentials reads GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func serviceAccountCredentials(ctx context.Context, logger *applog.Logger) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		raw, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return raw, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) sheetFor(kind string) (string, error) {
	name, ok := c.sheetNames[kind]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: unknown kind %q", ports.ErrInvalidRow, kind)
	}
	return name, nil
}

// InvalidateRowCache forgets every cached id -> row mapping.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked("")
}

// invalidateLocked drops one sheet, or all sheets when sheet is empty.
func (c *Client) invalidateLocked(sheet string) {
	if sheet == "" {
		c.rowIndex = make(map[string]map[int64]int)
		c.cachedRowCount = make(map[string]int)
		c.cacheExpiresAt = make(map[string]time.Time)
		return
	}
	delete(c.rowIndex, sheet)
	delete(c.cachedRowCount, sheet)
	delete(c.cacheExpiresAt, sheet)
}

// rejected marks a 400 from the Sheets API, which retrying will not fix.
func rejected(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRow, err)
	}
	return err
}

// lockSheet holds the sheet's write lock until the returned func is called.
func (c *Client) lockSheet(sheet string) func() {
	c.mu.Lock()
	l, ok := c.writeLocks[sheet]
	if !ok {
		l = &sync.Mutex{}
		c.writeLocks[sheet] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// dropIndex forgets a sheet's cached rows, e.g. after a failed write left
// their state unknown.
func (c *Client) dropIndex(sheet string) {
	c.mu.Lock()
	c.invalidateLocked(sheet)
	c.mu.Unlock()
}

// locate returns the row number holding id (0 when absent) and the number of
// used rows in the sheet.
func (c *Client) locate(ctx context.Context, sheet string, id int64) (row, used int, err error) {
	c.mu.Lock()
	if time.Now().Before(c.cacheExpiresAt[sheet]) {
		row, used = c.rowIndex[sheet][id], c.cachedRowCount[sheet]
		c.mu.Unlock()
		return row, used, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexIDColumn(resp.Values)

	c.mu.Lock()
	c.rowIndex[sheet] = index
	c.cachedRowCount[sheet] = len(resp.Values)
	c.cacheExpiresAt[sheet] = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return index[id], len(resp.Values), nil
}

// Upsert rewrites the row in place when the id exists and appends otherwise.
// A header row is written first into an empty sheet.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet, err := c.sheetFor(row.Kind)
	if err != nil {
		return err
	}
	defer c.lockSheet(sheet)()

	at, used, err := c.locate(ctx, sheet, row.ID)
	if err != nil {
		return err
	}

	if at > 0 {
		rng := fmt.Sprintf("%s!A%d", sheet, at)
		vr := &gsheet.ValueRange{Values: [][]any{toCells(row.Cells)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			c.dropIndex(sheet)
			return fmt.Errorf("update %s: %w", rng, rejected(err))
		}
		c.logger.DebugContext(ctx, "Ledger row updated", applog.FieldEntity, row.Kind, applog.FieldEntityID, row.ID, "row", at)
		return nil
	}

	values := make([][]any, 0, 2)
	if used == 0 {
		values = append(values, toCells(ports.Header(row.Kind)))
	}
	values = append(values, toCells(row.Cells))
	rng := fmt.Sprintf("%s!A:A", sheet)
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		c.dropIndex(sheet)
		return fmt.Errorf("append %s: %w", rng, rejected(err))
	}
	c.dropIndex(sheet)
	c.logger.DebugContext(ctx, "Ledger row appended", applog.FieldEntity, row.Kind, applog.FieldEntityID, row.ID)
	return nil
}

// Delete removes the row holding id by deleting the sheet dimension.
func (c *Client) Delete(ctx context.Context, kind string, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet, err := c.sheetFor(kind)
	if err != nil {
		return err
	}
	defer c.lockSheet(sheet)()

	at, _, err := c.locate(ctx, sheet, id)
	if err != nil {
		return err
	}
	if at == 0 {
		return nil
	}
	sheetID, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(at - 1),
					EndIndex:   int64(at),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		c.dropIndex(sheet)
		return fmt.Errorf("delete row %d in %s: %w", at, sheet, err)
	}
	c.dropIndex(sheet)
	c.logger.DebugContext(ctx, "Ledger row deleted", applog.FieldEntity, kind, applog.FieldEntityID, id, "row", at)
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
	}
	id, ok = c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}

// Rows reads every data row of a kind.
func (c *Client) Rows(ctx context.Context, kind string) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	sheet, err := c.sheetFor(kind)
	if err != nil {
		return nil, err
	}
	width := len(ports.Header(kind))
	rng := fmt.Sprintf("%s!A:%s", sheet, columnName(width))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedgerRows(kind, resp.Values), nil
}

func toCells(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// columnName maps 1 -> A, 26 -> Z, 27 -> AA.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
