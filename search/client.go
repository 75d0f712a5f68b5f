// Package search queries the full-text bill index (a Solr-style /select
// endpoint) for saved bill searches.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/coregx/notify/model"
)

// ErrUnconfigured is returned when no index URL is configured.
var ErrUnconfigured = errors.New("search index is not configured")

// MatchAll is the query used when a saved search has no term.
const MatchAll = "*:*"

// CreatedField is the indexed bill creation date used to filter and sort.
const CreatedField = "created_at"

var tracer = otel.Tracer("search")

// Config holds the search client settings.
type Config struct {
	// BaseURL is the index root, e.g. http://localhost:8983/solr/bills.
	// Empty means unconfigured.
	BaseURL string

	// Rows caps the number of ids returned per search.
	Rows int

	// RequestsPerSecond limits the request rate. Zero disables the limit.
	RequestsPerSecond float64

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// Attempts is the number of tries for transient failures.
	Attempts uint

	// RetryDelay is the initial backoff between tries.
	RetryDelay time.Duration
}

// DefaultConfig returns the settings used by the server.
func DefaultConfig() Config {
	return Config{
		Rows:              500,
		RequestsPerSecond: 5,
		Timeout:           10 * time.Second,
		Attempts:          3,
		RetryDelay:        time.Second,
	}
}

// Client runs saved searches against the index.
type Client struct {
	baseURL    string
	rows       int
	attempts   uint
	retryDelay time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a client. Zero-valued settings fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		rows:       cfg.Rows,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		logger:  logger.With("module", "search"),
	}
}

// Configured reports whether an index URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// statusError is a non-2xx answer from the index.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search index returned HTTP %d", e.code)
}

type selectResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			OCDID string `json:"ocd_id"`
		} `json:"docs"`
	} `json:"response"`
}

// SearchBillIDs returns the OCD ids of bills matching params created at or
// after since, newest first. A zero since searches the whole index.
// Transient failures (network errors, 5xx, 429) are retried.
func (c *Client) SearchBillIDs(ctx context.Context, params model.SearchParams, since time.Time) ([]string, error) {
	if !c.Configured() {
		return nil, ErrUnconfigured
	}

	ctx, span := tracer.Start(ctx, "SearchBillIDs")
	defer span.End()

	endpoint := c.baseURL + "/select?" + Query(params, since, c.rows).Encode()
	span.SetAttributes(attribute.String("search.term", params.Term))

	var ids []string
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to wait for rate limiter: %w", err))
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			start := time.Now()
			resp, err := c.httpClient.Do(req)
			requestDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				c.logger.Warn("Search request failed, will retry", "error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				return &statusError{code: resp.StatusCode}
			}

			var body selectResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode search response: %w", err))
			}

			ids = ids[:0]
			for _, doc := range body.Response.Docs {
				if doc.OCDID != "" {
					ids = append(ids, doc.OCDID)
				}
			}
			if body.Response.NumFound > len(body.Response.Docs) {
				c.logger.Warn("Search matched more bills than requested rows",
					"term", params.Term, "found", body.Response.NumFound, "rows", c.rows)
			}
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying search after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code >= 500 || se.code == http.StatusTooManyRequests
			}
			return true
		}),
	)
	if err != nil {
		requestErrors.Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("search %q: %w", params.Term, err)
	}

	span.SetAttributes(attribute.Int("search.results", len(ids)))
	return ids, nil
}

// Query builds the /select parameters for a saved search: the term (or
// MatchAll), one fq filter per facet, a creation date range when since is
// set, and the ocd_id field list. Results are sorted newest first.
func Query(params model.SearchParams, since time.Time, rows int) url.Values {
	params = params.Normalize()

	q := url.Values{}
	term := params.Term
	if term == "" {
		term = MatchAll
	}
	q.Set("q", term)

	for _, name := range params.FacetNames() {
		values := params.Facets[name]
		quoted := make([]string, 0, len(values))
		for _, v := range values {
			quoted = append(quoted, strconv.Quote(v))
		}
		if len(quoted) == 1 {
			q.Add("fq", name+":"+quoted[0])
			continue
		}
		q.Add("fq", name+":("+strings.Join(quoted, " OR ")+")")
	}

	if !since.IsZero() {
		q.Add("fq", CreatedField+":["+since.UTC().Format("2006-01-02T15:04:05Z")+" TO *]")
	}

	q.Set("sort", CreatedField+" desc")
	q.Set("fl", "ocd_id")
	q.Set("wt", "json")
	q.Set("rows", strconv.Itoa(rows))
	return q
}
