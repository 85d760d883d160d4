package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	applog "tipsplit/internal/log"
	ports "tipsplit/internal/sheets"
	"tipsplit/internal/storage"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var ErrMissingCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")

// Config selects the spreadsheet and the service account.
type Config struct {
	SpreadsheetID      string
	DistributionsSheet string
	TransfersSheet     string
	CredentialsJSON    string
	CredentialsFile    string
}

type Exporter struct {
	svc                *gsheet.Service
	spreadsheetID      string
	distributionsSheet string
	transfersSheet     string
	logger             *applog.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

var _ ports.DistributionExporter = (*Exporter)(nil)

// NewFromConfig creates a Sheets exporter authenticated with a service account.
func NewFromConfig(ctx context.Context, cfg Config, logger *applog.Logger) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	credentialsJSON, err := loadCredentials(cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newExporter(svc, spreadsheetID, cfg, logger), nil
}

func newExporter(svc *gsheet.Service, spreadsheetID string, cfg Config, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentSheets)
	}
	return &Exporter{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		distributionsSheet: defaultName(cfg.DistributionsSheet, "Distributions"),
		transfersSheet:     defaultName(cfg.TransfersSheet, "Transfers"),
		logger:             logger,
	}
}

// loadCredentials prefers inline JSON over a file path.
func loadCredentials(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// ExportDistribution appends one row per payee and one per transfer in a
// single batch update, so either both sheets get the rows or neither does.
// Cells are typed values; text is never parsed as a formula.
func (e *Exporter) ExportDistribution(ctx context.Context, record storage.DistributionRecord) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows, err := ports.BuildRows(record)
	if err != nil {
		return err
	}

	ids, err := e.resolveSheetIDs(ctx)
	if err != nil {
		return err
	}

	var requests []*gsheet.Request
	for _, part := range []struct {
		sheet string
		rows  [][]any
	}{
		{e.distributionsSheet, rows.Payees},
		{e.transfersSheet, rows.Transfers},
	} {
		if len(part.rows) == 0 {
			continue
		}
		id, ok := ids[part.sheet]
		if !ok {
			return fmt.Errorf("sheet %q not found in spreadsheet", part.sheet)
		}
		requests = append(requests, appendCellsRequest(id, part.rows))
	}
	if len(requests) == 0 {
		return nil
	}

	_, err = e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append distribution %s: %w", record.ID, err)
	}

	e.logger.InfoContext(ctx, "Exported distribution to Google Sheets",
		applog.FieldDistributionID, record.ID,
		"payee_rows", len(rows.Payees),
		"transfer_rows", len(rows.Transfers))
	return nil
}

// resolveSheetIDs maps sheet titles to their numeric ids, once.
func (e *Exporter) resolveSheetIDs(ctx context.Context) (map[string]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sheetIDs != nil {
		return e.sheetIDs, nil
	}

	resp, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", e.spreadsheetID, err)
	}
	ids := make(map[string]int64, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	e.sheetIDs = ids
	return ids, nil
}

func appendCellsRequest(sheetID int64, rows [][]any) *gsheet.Request {
	data := make([]*gsheet.RowData, 0, len(rows))
	for _, row := range rows {
		cells := make([]*gsheet.CellData, 0, len(row))
		for _, v := range row {
			cells = append(cells, &gsheet.CellData{UserEnteredValue: cellValue(v)})
		}
		data = append(data, &gsheet.RowData{Values: cells})
	}
	return &gsheet.Request{AppendCells: &gsheet.AppendCellsRequest{
		SheetId: sheetID,
		Rows:    data,
		Fields:  "userEnteredValue",
		// the first sheet of a spreadsheet has id 0
		ForceSendFields: []string{"SheetId"},
	}}
}

// cellValue types a row value. Strings go out as string values, which the
// API stores verbatim even when they start with "=".
func cellValue(v any) *gsheet.ExtendedValue {
	switch x := v.(type) {
	case int64:
		f := float64(x)
		return &gsheet.ExtendedValue{NumberValue: &f}
	case int:
		f := float64(x)
		return &gsheet.ExtendedValue{NumberValue: &f}
	case string:
		return &gsheet.ExtendedValue{StringValue: &x}
	default:
		str := fmt.Sprint(x)
		return &gsheet.ExtendedValue{StringValue: &str}
	}
}

// EnsureHeaders writes the column headers when a sheet's first row is empty.
func (e *Exporter) EnsureHeaders(ctx context.Context) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	for _, s := range []struct {
		name   string
		cols   string
		header []any
	}{
		{e.distributionsSheet, "A1:I1", ports.PayeeHeader},
		{e.transfersSheet, "A1:E1", ports.TransferHeader},
	} {
		rng := sheetRange(s.name, s.cols)
		resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read %s: %w", rng, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
			continue
		}
		vr := &gsheet.ValueRange{Values: [][]any{s.header}}
		if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header %s: %w", rng, err)
		}
	}
	return nil
}

// sheetRange quotes sheet names so spaces and punctuation survive A1 notation.
func sheetRange(sheet, columns string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), columns)
}

func defaultName(name, fallback string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fallback
}
