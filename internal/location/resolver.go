package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/metrics"
)

const (
	DefaultBackendTimeout = 8 * time.Second
	DefaultDirectTimeout  = 5 * time.Second
	DefaultDirectURL      = "https://api.bigdatacloud.net/data/reverse-geocode-client?latitude={lat}&longitude={lng}&localityLanguage=en"

	backendReversePath       = "/api/v1/geocode/reverse"
	responseReadLimit  int64 = 64 << 10
	errorBodyReadLimit int64 = 1024
)

// Resolver turns coordinates into an address record.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, lat, lng float64) (Record, error)
}

// Chain tries resolvers in order and returns the first success. When every
// resolver fails the returned error carries each failure.
type Chain struct {
	resolvers []Resolver
	logg      *logger.Logger
	metrics   *metrics.GeocodeMetrics
	now       func() time.Time
}

func NewChain(logg *logger.Logger, m *metrics.GeocodeMetrics, resolvers ...Resolver) *Chain {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Chain{resolvers: resolvers, logg: logg, metrics: m, now: time.Now}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Resolve(ctx context.Context, lat, lng float64) (Record, error) {
	var errs error
	for _, r := range c.resolvers {
		start := c.now()
		rec, err := r.Resolve(ctx, lat, lng)
		c.metrics.Observe(r.Name(), c.now().Sub(start), err)
		if err == nil {
			rec = rec.at(lat, lng)
			if rec.Source == "" {
				rec.Source = r.Name()
			}
			return rec, nil
		}
		c.logg.WarnErr(c.logg.WithField(ctx, "strategy", r.Name()), "geocoding strategy failed; trying next", err)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		errs = errors.New("no geocoding strategies configured")
	}
	return Record{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "all geocoding strategies failed")
}

// raceTimeout runs fn in its own goroutine and gives up after d even if fn
// ignores cancellation.
func raceTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, pkgerrors.Wrap(pkgerrors.CodeTimeout, ctx.Err(), fmt.Sprintf("timed out after %s", d))
		}
		return zero, ctx.Err()
	}
}

// BackendResolver calls the service's own reverse geocoding endpoint.
type BackendResolver struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	headers http.Header
}

type BackendOption func(*BackendResolver)

func WithBackendHTTPClient(client *http.Client) BackendOption {
	return func(b *BackendResolver) {
		if client != nil {
			b.client = client
		}
	}
}

// WithBackendHeader forwards a header (such as Authorization) on every call.
func WithBackendHeader(key, value string) BackendOption {
	return func(b *BackendResolver) {
		if value != "" {
			b.headers.Set(key, value)
		}
	}
}

func NewBackendResolver(baseURL string, timeout time.Duration, opts ...BackendOption) *BackendResolver {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	b := &BackendResolver{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: timeout,
		client:  &http.Client{},
		headers: http.Header{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *BackendResolver) Name() string { return SourceBackend }

func (b *BackendResolver) Resolve(ctx context.Context, lat, lng float64) (Record, error) {
	if b.baseURL == "" {
		return Record{}, pkgerrors.New(pkgerrors.CodeDependency, "backend geocoding url not configured")
	}
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	endpoint := b.baseURL + backendReversePath + "?" + query.Encode()

	return raceTimeout(ctx, b.timeout, func(ctx context.Context) (Record, error) {
		body, err := fetch(ctx, b.client, endpoint, b.headers)
		if err != nil {
			return Record{}, err
		}
		return ParseGeocodePayload(body)
	})
}

// DirectResolver calls a public reverse geocoding endpoint. The URL template
// carries {lat} and {lng} placeholders.
type DirectResolver struct {
	urlTemplate string
	timeout     time.Duration
	client      *http.Client
	userAgent   string
}

func NewDirectResolver(urlTemplate string, timeout time.Duration, client *http.Client) *DirectResolver {
	if strings.TrimSpace(urlTemplate) == "" {
		urlTemplate = DefaultDirectURL
	}
	if timeout <= 0 {
		timeout = DefaultDirectTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &DirectResolver{
		urlTemplate: urlTemplate,
		timeout:     timeout,
		client:      client,
		userAgent:   "quickbite-backend/1.0",
	}
}

func (d *DirectResolver) Name() string { return SourceDirect }

func (d *DirectResolver) Resolve(ctx context.Context, lat, lng float64) (Record, error) {
	endpoint := strings.NewReplacer(
		"{lat}", strconv.FormatFloat(lat, 'f', -1, 64),
		"{lng}", strconv.FormatFloat(lng, 'f', -1, 64),
	).Replace(d.urlTemplate)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("User-Agent", d.userAgent)
	body, err := fetch(ctx, d.client, endpoint, headers)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Record{}, pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("timed out after %s", d.timeout))
		}
		return Record{}, err
	}
	return ParseGeocodePayload(body)
}

// CoordinatesResolver never fails: it displays the raw coordinates.
type CoordinatesResolver struct{}

func (CoordinatesResolver) Name() string { return SourceCoordinates }

func (CoordinatesResolver) Resolve(_ context.Context, lat, lng float64) (Record, error) {
	return CoordinatesRecord(lat, lng), nil
}

func fetch(ctx context.Context, client *http.Client, endpoint string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read geocode response")
	}
	return body, nil
}
