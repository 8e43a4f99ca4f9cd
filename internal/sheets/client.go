package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	renderFormatted       = "FORMATTED_VALUE"
)

// Client implements service.TableStore and service.Stamper for one spreadsheet.
type Client struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewClient authenticates and creates a Google Sheets client.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewClientWithService(srv, config, logger), nil
}

// NewClientWithService wraps an existing service, e.g. one pointed at a test server.
func NewClientWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Client {
	return &Client{
		service: srv,
		config:  config,
		logger:  common.OrDiscard(logger),
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// ReadTable reads every value of the named sheet. The first row is the
// header; data rows carry their 1-based sheet row number.
func (c *Client) ReadTable(ctx context.Context, table string) (model.TableSnapshot, error) {
	values, err := c.ReadAll(ctx, table)
	if err != nil {
		return model.TableSnapshot{}, err
	}

	snapshot := model.TableSnapshot{Name: table}
	if len(values) == 0 {
		return snapshot, nil
	}

	snapshot.Header = values[0]
	snapshot.Rows = make([]model.Row, 0, len(values)-1)
	for i, cells := range values[1:] {
		snapshot.Rows = append(snapshot.Rows, model.Row{Index: i + 2, Cells: cells})
	}

	c.logger.Debug("read table", "table", table, "rows", len(snapshot.Rows), "columns", len(snapshot.Header))
	return snapshot, nil
}

// ReadAll returns the formatted cell text of the whole sheet.
func (c *Client) ReadAll(ctx context.Context, table string) ([][]string, error) {
	var resp *sheets.ValueRange
	err := c.withRetry(ctx, func() error {
		var err error
		resp, err = c.service.Spreadsheets.Values.Get(c.config.SpreadsheetID, quoteSheet(table)).
			ValueRenderOption(renderFormatted).
			Context(ctx).
			Do()
		return classifyAPIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

// ApplyWrites sends the batch in a single values.batchUpdate request with
// USER_ENTERED interpretation.
func (c *Client) ApplyWrites(ctx context.Context, table string, writes []model.CellWrite) error {
	if len(writes) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(writes))
	for _, w := range writes {
		data = append(data, &sheets.ValueRange{
			Range:  quoteSheet(table) + "!" + w.Range,
			Values: [][]any{{c.cellValue(w.Value)}},
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputUserEntered,
		Data:             data,
	}

	err := c.withRetry(ctx, func() error {
		_, err := c.service.Spreadsheets.Values.BatchUpdate(c.config.SpreadsheetID, req).Context(ctx).Do()
		return classifyAPIError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to update table %s: %w", table, err)
	}

	c.logger.Info("applied writes", "table", table, "writes", len(writes))
	return nil
}

// StampUpdated writes value as text into one cell, e.g. the dashboard's
// "last updated" cell.
func (c *Client) StampUpdated(ctx context.Context, table, cell, value string) error {
	vr := &sheets.ValueRange{Values: [][]any{{"'" + value}}}
	rng := quoteSheet(table) + "!" + cell

	err := c.withRetry(ctx, func() error {
		_, err := c.service.Spreadsheets.Values.Update(c.config.SpreadsheetID, rng, vr).
			ValueInputOption(valueInputUserEntered).
			Context(ctx).
			Do()
		return classifyAPIError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to stamp %s: %w", rng, err)
	}
	return nil
}

// ListTables returns the titles of every sheet in the spreadsheet.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var spreadsheet *sheets.Spreadsheet
	err := c.withRetry(ctx, func() error {
		var err error
		spreadsheet, err = c.service.Spreadsheets.Get(c.config.SpreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		return classifyAPIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", c.config.SpreadsheetID, err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (c *Client) cellValue(v any) any {
	s, ok := v.(string)
	if !ok || !c.config.ForceText || s == "" || strings.HasPrefix(s, "'") {
		return v
	}
	return "'" + s
}

func (c *Client) withRetry(ctx context.Context, op func() error) error {
	return common.WithRetry(ctx, c.logger, op, c.config.RetryOptions())
}

// classifyAPIError marks API errors that will not improve with retrying as permanent.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case apiErr.Code == http.StatusNotFound:
			return common.Permanent(fmt.Errorf("%w: %w", common.ErrTableNotFound, err))
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return common.Permanent(err)
		}
	}
	return err
}

// quoteSheet quotes a sheet title for use in an A1 range.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
