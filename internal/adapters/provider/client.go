package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/creditconsole/internal/domain/model"
	"github.com/okian/creditconsole/pkg/logger"
	"github.com/okian/creditconsole/pkg/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	requestIDHeader = "X-Request-ID"
	maxResponseBody = 8 << 20
	maxErrorBody    = 512
)

// Client talks to the analytics provider over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a provider client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if trimmed == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    u,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

var _ Gateway = (*Client)(nil)

// ListEntities loads the selectable entities.
func (c *Client) ListEntities(ctx context.Context) ([]model.EntityRef, error) {
	var rows []EntityDTO
	if err := c.do(ctx, OpListEntities, http.MethodGet, c.endpoint(nil, "dashboard", "clinicas"), nil, &rows, false); err != nil {
		return nil, err
	}
	out := make([]model.EntityRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// FetchDashboard loads the payload for spec.
func (c *Client) FetchDashboard(ctx context.Context, spec model.QuerySpec) (model.DashboardPayload, error) {
	var dto DashboardDTO
	if err := c.do(ctx, OpFetchDashboard, http.MethodGet, c.endpoint(DashboardQuery(spec), "dashboard"), nil, &dto, false); err != nil {
		return model.DashboardPayload{}, err
	}
	return dto.ToModel(spec), nil
}

// FetchLimitHistory loads the decision history of one entity.
func (c *Client) FetchLimitHistory(ctx context.Context, entityID string) ([]model.LimitDecision, error) {
	if entityID == "" || entityID == model.AllEntities {
		return []model.LimitDecision{}, nil
	}
	var rows []DecisionDTO
	if err := c.do(ctx, OpFetchHistory, http.MethodGet, c.endpoint(nil, "clinicas", entityID, "limites"), nil, &rows, false); err != nil {
		return nil, err
	}
	out := make([]model.LimitDecision, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToModel())
	}
	return out, nil
}

// SubmitLimitDecision appends a decision to the entity's history.
func (c *Client) SubmitLimitDecision(ctx context.Context, entityID string, decision model.LimitDecision) error {
	if entityID == "" || entityID == model.AllEntities {
		return model.ErrNoEntitySelected
	}
	body, err := json.Marshal(DecisionFromModel(decision))
	if err != nil {
		return &Error{Op: OpSubmitDecision, Kind: ErrValidationRejected, Err: err}
	}
	return c.do(ctx, OpSubmitDecision, http.MethodPost, c.endpoint(nil, "clinicas", entityID, "limite_aprovado"), body, nil, true)
}

// DashboardQuery renders the query string for spec. A range supersedes the
// month count and the portfolio sentinel sends no entity parameter.
func DashboardQuery(spec model.QuerySpec) url.Values {
	q := url.Values{}
	if spec.Window.Mode == model.WindowRange {
		q.Set("inicio", spec.Window.Start.String())
		q.Set("fim", spec.Window.End.String())
	} else {
		q.Set("meses", strconv.Itoa(spec.Window.Months))
	}
	if !spec.IsAllEntities() {
		q.Set("clinica_id", spec.EntityID)
	}
	return q
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	u := c.baseURL.JoinPath(escaped...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte, out any, write bool) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		elapsed := time.Since(start)
		metrics.RecordProviderRequest(op, outcome(err), float64(elapsed.Milliseconds()))
		fields := []logger.Field{
			logger.String("op", op),
			logger.String("request_id", requestID),
			logger.Duration("elapsed", elapsed),
		}
		if err != nil {
			c.logger.Warn(ctx, "provider call failed", append(fields, logger.Error(err))...)
			return
		}
		c.logger.Debug(ctx, "provider call", fields...)
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Op: op, Kind: ErrBadQuery, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrProviderUnavailable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Op:         op,
			Kind:       statusKind(resp.StatusCode, write),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &Error{Op: op, Kind: ErrProviderUnavailable, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
