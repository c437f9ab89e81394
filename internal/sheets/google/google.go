package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"settle/internal/core"
	ports "settle/internal/sheets"
)

const (
	defaultPeriodPrefix = "Week"
	defaultConcurrency  = 4
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Tabs whose title is periodPrefix followed by a number hold ledgers.
	periodPrefix string
	// Optional explicit handle tab; when empty every non-period tab is read.
	handlesSheet string
	concurrency  int
}

// Ensure interface conformance
var _ ports.Source = (*Client)(nil)

// Options configures a Client. Exactly one credential source is used, in
// this order: APIKey, service account JSON/file, OAuth client+token.
type Options struct {
	SpreadsheetID string
	PeriodPrefix  string
	HandlesSheet  string
	Concurrency   int

	APIKey string

	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// OptionsFromEnv reads Options from the environment.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_API_KEY, GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE (or GOOGLE_APPLICATION_CREDENTIALS), or
// GOOGLE_OAUTH_CLIENT_{JSON,FILE} with GOOGLE_OAUTH_TOKEN_{JSON,FILE}.
// Optional: GOOGLE_PERIOD_PREFIX (default "Week"), GOOGLE_HANDLES_SHEET.
func OptionsFromEnv() Options {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	saFile := env("GOOGLE_SERVICE_ACCOUNT_FILE")
	if saFile == "" {
		saFile = env("GOOGLE_APPLICATION_CREDENTIALS")
	}
	return Options{
		SpreadsheetID:      env("GOOGLE_SPREADSHEET_ID"),
		PeriodPrefix:       env("GOOGLE_PERIOD_PREFIX"),
		HandlesSheet:       env("GOOGLE_HANDLES_SHEET"),
		APIKey:             env("GOOGLE_API_KEY"),
		ServiceAccountJSON: env("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: saFile,
		OAuthClientJSON:    env("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile:    env("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenJSON:     env("GOOGLE_OAUTH_TOKEN_JSON"),
		OAuthTokenFile:     env("GOOGLE_OAUTH_TOKEN_FILE"),
	}
}

// NewFromEnv creates a Sheets client from environment variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return NewFromOptions(ctx, OptionsFromEnv())
}

// NewFromOptions builds the Sheets service from the configured credentials.
func NewFromOptions(ctx context.Context, o Options) (*Client, error) {
	if strings.TrimSpace(o.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	authOpts, err := credentialOptions(ctx, o)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", o.SpreadsheetID)
	return New(svc, o), nil
}

// New wraps an existing service. Only the non-credential fields of o are used.
func New(svc *gsheet.Service, o Options) *Client {
	prefix := strings.TrimSpace(o.PeriodPrefix)
	if prefix == "" {
		prefix = defaultPeriodPrefix
	}
	conc := o.Concurrency
	if conc < 1 {
		conc = defaultConcurrency
	}
	return &Client{
		svc:           svc,
		spreadsheetID: o.SpreadsheetID,
		periodPrefix:  prefix,
		handlesSheet:  strings.TrimSpace(o.HandlesSheet),
		concurrency:   conc,
	}
}

func credentialOptions(ctx context.Context, o Options) ([]goption.ClientOption, error) {
	scope := goption.WithScopes(gsheet.SpreadsheetsReadonlyScope)
	switch {
	case o.APIKey != "":
		slog.InfoContext(ctx, "Using API key credentials")
		return []goption.ClientOption{goption.WithAPIKey(o.APIKey)}, nil
	case o.ServiceAccountJSON != "" || o.ServiceAccountFile != "":
		credentialsJSON, err := readInlineOrFile(o.ServiceAccountJSON, o.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials", "credentials_size", len(credentialsJSON))
		return []goption.ClientOption{goption.WithCredentialsJSON(credentialsJSON), scope}, nil
	case o.OAuthClientJSON != "" || o.OAuthClientFile != "":
		clientJSON, err := readInlineOrFile(o.OAuthClientJSON, o.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		tokenJSON, err := readInlineOrFile(o.OAuthTokenJSON, o.OAuthTokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token file: %w", err)
		}
		if len(tokenJSON) == 0 {
			return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("decode oauth token: %w", err)
		}
		slog.InfoContext(ctx, "Using OAuth token credentials")
		return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, &tok))}, nil
	default:
		return nil, errors.New("missing credentials (set GOOGLE_API_KEY, GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_JSON)")
	}
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// sheetTitles returns every tab title in the spreadsheet.
func (c *Client) sheetTitles(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties == nil {
			continue
		}
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

// periodTabs maps period numbers to the tab title holding them.
func (c *Client) periodTabs(ctx context.Context) (map[core.Period]string, []string, error) {
	titles, err := c.sheetTitles(ctx)
	if err != nil {
		return nil, nil, err
	}
	tabs := make(map[core.Period]string)
	var others []string
	for _, title := range titles {
		if p, ok := parsePeriodTitle(title, c.periodPrefix); ok {
			tabs[p] = title
			continue
		}
		others = append(others, title)
	}
	return tabs, others, nil
}

// ListPeriods implements ports.PeriodLister.
func (c *Client) ListPeriods(ctx context.Context) ([]core.Period, error) {
	tabs, _, err := c.periodTabs(ctx)
	if err != nil {
		return nil, err
	}
	periods := make([]core.Period, 0, len(tabs))
	for p := range tabs {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	return periods, nil
}

// ReadLedger implements ports.LedgerReader.
func (c *Client) ReadLedger(ctx context.Context, period core.Period) (core.Ledger, error) {
	tabs, _, err := c.periodTabs(ctx)
	if err != nil {
		return nil, err
	}
	title, ok := tabs[period]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ports.ErrPeriodNotFound, int(period))
	}
	values, err := c.readSheet(ctx, title)
	if err != nil {
		return nil, err
	}
	ledger, err := parseLedgerSheet(values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", title, err)
	}
	return ledger, nil
}

// ReadHandles implements ports.HandleReader. Without an explicit handle tab,
// every non-period tab is read concurrently and merged in title order.
func (c *Client) ReadHandles(ctx context.Context) (map[string]string, error) {
	var titles []string
	if c.handlesSheet != "" {
		titles = []string{c.handlesSheet}
	} else {
		_, others, err := c.periodTabs(ctx)
		if err != nil {
			return nil, err
		}
		titles = others
	}

	results := make([][][]interface{}, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, title := range titles {
		g.Go(func() error {
			values, err := c.readSheet(gctx, title)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handles := make(map[string]string)
	for _, values := range results {
		for name, handle := range parseHandleSheet(values) {
			handles[name] = handle
		}
	}
	return handles, nil
}

func (c *Client) readSheet(ctx context.Context, title string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := quoteSheetName(title)
	// Unformatted values keep numbers as float64, so a "1,234.50" display
	// format never reaches the string parser.
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// quoteSheetName returns title in A1 notation, quoting it when needed.
func quoteSheetName(title string) string {
	if strings.ContainsAny(title, " '!") {
		return "'" + strings.ReplaceAll(title, "'", "''") + "'"
	}
	return title
}
