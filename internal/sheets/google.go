package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleConfig holds the spreadsheet id and service-account credentials
type GoogleConfig struct {
	SpreadsheetID string
	ProjectID     string
	PrivateKeyID  string
	PrivateKey    string
	ClientEmail   string
	ClientID      string
	ClientCertURL string

	RequestsPerSecond float64
	Timeout           time.Duration
}

// CredentialsJSON renders the service-account key file Google expects.
// Private keys pasted into env files usually carry literal "\n" sequences.
func (c GoogleConfig) CredentialsJSON() ([]byte, error) {
	if c.ClientEmail == "" || c.PrivateKey == "" {
		return nil, fmt.Errorf("%w: google service account email and private key are required", types.ErrConfigurationMissing)
	}

	return json.Marshal(map[string]string{
		"type":                        "service_account",
		"project_id":                  c.ProjectID,
		"private_key_id":              c.PrivateKeyID,
		"private_key":                 strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"client_email":                c.ClientEmail,
		"client_id":                   c.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_x509_cert_url":        c.ClientCertURL,
	})
}

// GoogleWorkbook implements Workbook on the Sheets v4 API
type GoogleWorkbook struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	limiter       *rate.Limiter
	timeout       time.Duration
	logger        zerolog.Logger
}

// NewGoogleWorkbook authenticates with the service account and opens the spreadsheet
func NewGoogleWorkbook(ctx context.Context, cfg GoogleConfig, logger zerolog.Logger) (*GoogleWorkbook, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: GOOGLE_SPREADSHEET_ID is required", types.ErrConfigurationMissing)
	}

	creds, err := cfg.CredentialsJSON()
	if err != nil {
		return nil, err
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("invalid google credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	logger.Info().
		Str("spreadsheet", cfg.SpreadsheetID).
		Str("account", cfg.ClientEmail).
		Float64("rps", rps).
		Msg("Google Sheets workbook initialized")

	return &GoogleWorkbook{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		timeout:       timeout,
		logger:        logger.With().Str("component", "sheets").Logger(),
	}, nil
}

// call waits for quota, applies the timeout and classifies failures
func (g *GoogleWorkbook) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: sheets %s: %v", types.ErrUpstreamUnavailable, op, err)
	}

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveUpstream("sheets", op, start, err)
	if err != nil {
		g.logger.Warn().Err(err).Str("op", op).Msg("Sheets API call failed")
		return fmt.Errorf("%w: sheets %s: %v", types.ErrUpstreamUnavailable, op, err)
	}
	return nil
}

func (g *GoogleWorkbook) SheetTitles(ctx context.Context) ([]string, error) {
	var titles []string
	err := g.call(ctx, "titles", func(ctx context.Context) error {
		ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, s := range ss.Sheets {
			if s.Properties != nil {
				titles = append(titles, s.Properties.Title)
			}
		}
		return nil
	})
	return titles, err
}

func (g *GoogleWorkbook) Values(ctx context.Context, title string) ([][]string, error) {
	var rows [][]string
	err := g.call(ctx, "values", func(ctx context.Context) error {
		vr, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, quoteTitle(title)).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		rows = make([][]string, len(vr.Values))
		for i, r := range vr.Values {
			rows[i] = make([]string, len(r))
			for j, v := range r {
				rows[i][j] = fmt.Sprint(v)
			}
		}
		return nil
	})
	return rows, err
}

func (g *GoogleWorkbook) UpdateCells(ctx context.Context, cells []CellUpdate) error {
	if len(cells) == 0 {
		return nil
	}

	data := make([]*sheetsapi.ValueRange, len(cells))
	for i, c := range cells {
		data[i] = &sheetsapi.ValueRange{
			Range:  A1(c.Sheet, c.Row, c.Col),
			Values: [][]interface{}{{c.Value}},
		}
	}

	return g.call(ctx, "batch_update", func(ctx context.Context) error {
		_, err := g.svc.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, &sheetsapi.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data:             data,
		}).Context(ctx).Do()
		return err
	})
}
