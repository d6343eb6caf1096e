package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
	"spendwise/internal/log"
	ports "spendwise/internal/sheets"
)

// lastColumn is the letter of the final mirrored column.
const lastColumn = "H"

// Cells are written verbatim so they read back exactly as rendered.
const valueInputOption = "RAW"

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Config selects the spreadsheet and the credentials used to reach it.
// A service account wins over OAuth user credentials when both are set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// Client mirrors expenses into one sheet of a Google spreadsheet.
// Row lookups scan the ID column, so writes are serialised per client.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger

	mu sync.Mutex
}

// New creates a Sheets client authenticated with a service account or, failing
// that, with a stored OAuth token.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	auth, err := clientOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func clientOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	if hasServiceAccount(cfg) {
		b, err := readSecret(cfg.CredentialsJSON, cfg.CredentialsFile, "service account")
		if err != nil {
			return nil, err
		}
		return goption.WithCredentialsJSON(b), nil
	}
	if hasOAuth(cfg) {
		ts, err := oauthTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return goption.WithTokenSource(ts), nil
	}
	return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*)")
}

func hasServiceAccount(cfg Config) bool {
	return strings.TrimSpace(cfg.CredentialsJSON) != "" || strings.TrimSpace(cfg.CredentialsFile) != ""
}

func hasOAuth(cfg Config) bool {
	return strings.TrimSpace(cfg.OAuthClientJSON) != "" || strings.TrimSpace(cfg.OAuthClientFile) != ""
}

// oauthTokenSource refreshes the saved user token as it expires.
func oauthTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	clientJSON, err := readSecret(cfg.OAuthClientJSON, cfg.OAuthClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	oc, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	tokenJSON, err := readSecret(cfg.OAuthTokenJSON, cfg.OAuthTokenFile, "oauth token")
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return oc.TokenSource(ctx, &tok), nil
}

func readSecret(inline, file, what string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if strings.TrimSpace(file) == "" {
		return nil, fmt.Errorf("missing %s credentials", what)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return b, nil
}

// EnsureHeader writes the column header when the first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rng := c.rowRange(1)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	if err := c.writeRow(ctx, 1, ports.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	c.logger.InfoContext(ctx, "Wrote sheet header", "sheet", c.sheet)
	return nil
}

func (c *Client) Upsert(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.readRows(ctx)
	if err != nil {
		return "", err
	}
	row := ports.Row(e)
	if n, ok := findRow(rows, e.ID); ok {
		if err := c.writeRow(ctx, n, row); err != nil {
			return "", err
		}
		c.logger.DebugContext(ctx, "Updated sheet row", log.FieldExpenseID, e.ID, log.FieldSheetRow, n)
		return c.rowRange(n), nil
	}

	ref, err := c.appendRow(ctx, row)
	if err != nil {
		return "", err
	}
	c.logger.DebugContext(ctx, "Appended sheet row", log.FieldExpenseID, e.ID, "ref", ref)
	return ref, nil
}

func (c *Client) Remove(ctx context.Context, expenseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	n, ok := findRow(rows, expenseID)
	if !ok {
		c.logger.DebugContext(ctx, "No sheet row to remove", log.FieldExpenseID, expenseID)
		return nil
	}
	if err := c.clearRow(ctx, n); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Cleared sheet row", log.FieldExpenseID, expenseID, log.FieldSheetRow, n)
	return nil
}

// Reconcile rewrites stale rows, appends missing ones and clears rows of
// expenses the user no longer has. Other users' rows are left alone.
func (c *Client) Reconcile(ctx context.Context, userID string, expenses []core.Expense) (ports.ReconcileResult, error) {
	var res ports.ReconcileResult
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.readRows(ctx)
	if err != nil {
		return res, err
	}

	want := make(map[string]struct{}, len(expenses))
	for _, e := range expenses {
		want[e.ID] = struct{}{}
	}

	for i, cells := range rows {
		n := i + 1
		if n == 1 || len(cells) <= ports.ColUser || cells[ports.ColUser] != userID {
			continue
		}
		if _, ok := want[cells[ports.ColID]]; ok {
			continue
		}
		if err := c.clearRow(ctx, n); err != nil {
			return res, err
		}
		res.Removed++
	}

	for _, e := range expenses {
		row := ports.Row(e)
		if n, ok := findRow(rows, e.ID); ok {
			if ports.SameRow(rows[n-1], row) {
				res.Unchanged++
				continue
			}
			if err := c.writeRow(ctx, n, row); err != nil {
				return res, err
			}
		} else if _, err := c.appendRow(ctx, row); err != nil {
			return res, err
		}
		res.Written++
	}
	return res, nil
}

// readRows returns every row of the mirrored columns; index i is sheet row i+1.
func (c *Client) readRows(ctx context.Context) ([][]string, error) {
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, v := range resp.Values {
		rows[i] = ports.ToStrings(v)
	}
	return rows, nil
}

func (c *Client) writeRow(ctx context.Context, n int, row []string) error {
	rng := c.rowRange(n)
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(row)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) appendRow(ctx context.Context, row []string) (string, error) {
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", rng, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) clearRow(ctx context.Context, n int) error {
	rng := c.rowRange(n)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastColumn, n)
}

// findRow returns the 1-based sheet row holding id, skipping the header.
func findRow(rows [][]string, id string) (int, bool) {
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > ports.ColID && rows[i][ports.ColID] == id {
			return i + 1, true
		}
	}
	return 0, false
}

func toValues(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
