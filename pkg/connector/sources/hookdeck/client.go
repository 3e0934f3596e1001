package hookdeck

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-hookdeck/pkg/clients"
	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/logger"
	"github.com/ajitpratap0/tap-hookdeck/pkg/metrics"
	"github.com/ajitpratap0/tap-hookdeck/pkg/observability"
)

// PageSize is the largest page the Hookdeck API returns.
const PageSize = 250

// Query parameter names.
const (
	paramLimit   = "limit"
	paramCursor  = "next"
	paramOrderBy = "order_by"
	paramDir     = "dir"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 1024

// BuildPageParams returns the query parameters for one page of stream d.
// cursor is the previous page's pagination.next, or "" for the first page.
// The stream's ExtraParams hook runs last.
func BuildPageParams(d *core.StreamDescriptor, sc *core.SyncContext, cursor string) (url.Values, error) {
	params := url.Values{}
	params.Set(paramLimit, strconv.Itoa(PageSize))

	if cursor != "" {
		params.Set(paramCursor, cursor)
	}

	if d.ReplicationKey != "" {
		start, err := sc.StartingTimestamp()
		if err != nil {
			return nil, err
		}
		if start != nil {
			params.Set(d.ReplicationKey+"[gte]", FormatTimestamp(*start))
		}
		if d.Sorted {
			params.Set(paramOrderBy, d.ReplicationKey)
			params.Set(paramDir, "asc")
		}
	}

	if d.ExtraParams != nil {
		d.ExtraParams(params)
	}
	return params, nil
}

// FormatTimestamp renders t as 2006-01-02T15:04:05[.000000]-07:00.
// Microseconds appear only when non-zero and UTC is written as +00:00.
func FormatTimestamp(t time.Time) string {
	t = t.Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05-07:00")
	}
	return t.Format("2006-01-02T15:04:05.000000-07:00")
}

// Page is one decoded list response.
type Page struct {
	Models     []core.Record `json:"models"`
	Pagination struct {
		Next *string `json:"next"`
	} `json:"pagination"`
}

// NextCursor returns the cursor for the following page, or "" on the last.
func (p *Page) NextCursor() string {
	if p.Pagination.Next == nil {
		return ""
	}
	return *p.Pagination.Next
}

// Client pages through Hookdeck list endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *clients.HTTPClient
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewClient returns a client for the API rooted at baseURL, e.g.
// https://api.hookdeck.com/2024-09-01.
func NewClient(baseURL, apiKey string, httpClient *clients.HTTPClient, collector *metrics.Collector, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		metrics: collector,
		logger:  logger.With(zap.String("component", "hookdeck_client")),
	}
}

// authorized returns an HTTP client carrying the bearer token. It is built
// per stream from the configured key.
func (c *Client) authorized() *clients.HTTPClient {
	return c.http.WithTokenSource(clients.BearerTokenSource(c.apiKey))
}

// ReadStream requests pages of d one after another, following
// pagination.next, and passes every model to emit. It stops after a page
// without a next cursor.
func (c *Client) ReadStream(ctx context.Context, d *core.StreamDescriptor, sc *core.SyncContext, emit core.EmitFunc) error {
	httpClient := c.authorized()
	log := logger.WithContext(logger.ContextWithStream(ctx, d.Name), c.logger)

	cursor := ""
	for pageNum := 1; ; pageNum++ {
		page, err := c.fetchPage(ctx, httpClient, d, sc, cursor, pageNum)
		if err != nil {
			return err
		}

		for _, rec := range page.Models {
			if err := emit(rec); err != nil {
				return err
			}
		}

		next := page.NextCursor()
		log.Debug("fetched page",
			zap.Int("page", pageNum),
			zap.Int("records", len(page.Models)),
			zap.Bool("has_next", next != ""))

		if next == "" {
			return nil
		}
		if next == cursor {
			return errors.New(errors.ErrorTypeData, "pagination cursor did not advance").
				WithDetail("stream", d.Name).
				WithDetail("cursor", cursor)
		}
		cursor = next
	}
}

// FetchPage requests a single page of d.
func (c *Client) FetchPage(ctx context.Context, d *core.StreamDescriptor, sc *core.SyncContext, cursor string) (*Page, error) {
	return c.fetchPage(ctx, c.authorized(), d, sc, cursor, 1)
}

func (c *Client) fetchPage(ctx context.Context, httpClient *clients.HTTPClient, d *core.StreamDescriptor, sc *core.SyncContext, cursor string, pageNum int) (page *Page, err error) {
	params, err := BuildPageParams(d, sc, cursor)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + d.Path + "?" + params.Encode()

	ctx, span := observability.StartSpan(ctx, "hookdeck.fetch_page",
		attribute.String("stream", d.Name),
		attribute.Int("page", pageNum))
	defer func() { observability.EndSpan(span, err) }()

	timer := metrics.NewTimer()
	resp, err := httpClient.Get(ctx, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		c.metrics.ObserveRequest(d.Name, 0, timer.Stop())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "page request failed").
			WithDetail("stream", d.Name).
			WithDetail("url", c.baseURL+d.Path)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(d.Name, resp.StatusCode, timer.Stop())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(d.Name, resp)
	}

	page = &Page{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(page); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode page").
			WithDetail("stream", d.Name)
	}
	c.metrics.RecordPage(d.Name)
	span.SetAttributes(attribute.Int("records", len(page.Models)))
	return page, nil
}

func statusError(stream string, resp *http.Response) *errors.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	errType := errors.ErrorTypeConnection
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		errType = errors.ErrorTypeAuthentication
	}
	return errors.Newf(errType, "hookdeck returned %s", resp.Status).
		WithDetail("stream", stream).
		WithDetail("status", resp.StatusCode).
		WithDetail("body", strings.TrimSpace(string(body)))
}
