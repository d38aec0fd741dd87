package google

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"toursync/internal"
	"toursync/internal/config"
	"toursync/internal/source"
)

const maxAttempts = 5

// Source reads spreadsheets through the Google Sheets API.
type Source struct {
	svc     *sheets.Service
	limiter *RateLimiter
}

func NewSource(ctx context.Context, cfg config.Config) (*Source, error) {
	if err := cfg.Require("GOOGLE_CLIENT_ID", cfg.GoogleClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GOOGLE_REFRESH_TOKEN", cfg.GoogleRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     googleauth.Endpoint,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
	httpClient := oauth2.NewClient(ctx, tokenSource)
	httpClient.Timeout = time.Duration(cfg.SheetsTimeoutMs) * time.Millisecond

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return &Source{svc: svc, limiter: NewRateLimiter(cfg.SheetsRateLimitRPS)}, nil
}

// NewSourceWithService wires a prebuilt Sheets service; tests inject a fake
// transport through it.
func NewSourceWithService(svc *sheets.Service, requestsPerSecond int) *Source {
	return &Source{svc: svc, limiter: NewRateLimiter(requestsPerSecond)}
}

func (s *Source) ListSheets(ctx context.Context, spreadsheetID string) ([]string, error) {
	var resp *sheets.Spreadsheet
	err := s.withRetry(ctx, "sheets.list", func() error {
		var callErr error
		resp, callErr = s.svc.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties.title").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			names = append(names, sh.Properties.Title)
		}
	}
	return names, nil
}

func (s *Source) ReadRows(ctx context.Context, spreadsheetID, sheetName string) ([]internal.ExternalRow, error) {
	var resp *sheets.ValueRange
	err := s.withRetry(ctx, "sheets.values", func() error {
		var callErr error
		resp, callErr = s.svc.Spreadsheets.Values.Get(spreadsheetID, sheetName).
			ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	grid := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, cellString(v))
		}
		grid = append(grid, cells)
	}

	headerIdx := source.DetectHeaderRow(grid)
	if headerIdx < 0 {
		return nil, &source.Error{Kind: source.KindNotFound, Op: "sheets.values",
			Err: fmt.Errorf("no header row in %s!%s", spreadsheetID, sheetName)}
	}
	return source.RowsFromGrid(grid[headerIdx], grid[headerIdx+1:]), nil
}

func (s *Source) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}

		classified := classify(op, err)
		lastErr = classified
		if !source.Retryable(classified) || attempt == maxAttempts {
			return classified
		}

		backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func classify(op string, err error) *source.Error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return &source.Error{Kind: source.KindNotFound, Op: op, Err: err}
		case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized:
			return &source.Error{Kind: source.KindForbidden, Op: op, Err: err}
		case apiErr.Code == http.StatusTooManyRequests:
			return &source.Error{Kind: source.KindRateLimited, Op: op, Err: err}
		case apiErr.Code >= 500:
			return &source.Error{Kind: source.KindTransient, Op: op, Err: err}
		}
		// Remaining 4xx codes carry no kind of their own; transient keeps
		// the API's own message in the surfaced error after bounded retries.
		return &source.Error{Kind: source.KindTransient, Op: op, Err: fmt.Errorf("status %d: %w", apiErr.Code, err)}
	}
	// Network-level failures are all retryable.
	return &source.Error{Kind: source.KindTransient, Op: op, Err: err}
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
