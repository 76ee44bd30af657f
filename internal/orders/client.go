package orders

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

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/pagination"
)

const (
	listPath                 = "/api/admin/orders"
	refundPath               = "/api/admin/refunds"
	defaultTimeout           = 10 * time.Second
	errorBodyReadLimit int64 = 1024
)

// Client talks to the remote admin order and refund API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("orders api base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{baseURL: trimmed, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type listResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Orders     []Order `json:"orders"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	} `json:"data"`
}

// List fetches one page of orders.
func (c *Client) List(ctx context.Context, params ListParams) (ListResult, error) {
	page := params.Params.Normalize()
	query := url.Values{}
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("limit", strconv.Itoa(page.Limit))
	if status := strings.TrimSpace(params.Status); status != "" {
		query.Set("status", status)
	}
	if by := strings.TrimSpace(params.CancelledBy); by != "" {
		query.Set("cancelledBy", by)
	}

	var body listResponse
	if err := c.do(ctx, http.MethodGet, listPath+"?"+query.Encode(), nil, &body); err != nil {
		return ListResult{}, err
	}
	if !body.Success {
		return ListResult{}, pkgerrors.New(pkgerrors.CodeDependency, "Failed to fetch orders: "+reason(body.Message))
	}
	orders := body.Data.Orders
	if orders == nil {
		orders = []Order{}
	}
	return ListResult{
		Orders:     orders,
		Total:      body.Data.Pagination.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: pagination.TotalPages(body.Data.Pagination.Total, page.Limit),
	}, nil
}

// InitiateRefund asks the remote API to refund the order identified by ref
// (display id or document id).
func (c *Client) InitiateRefund(ctx context.Context, ref string) (RefundResult, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return RefundResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	payload, err := json.Marshal(map[string]string{"orderId": ref})
	if err != nil {
		return RefundResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode refund request")
	}

	var body RefundResult
	if err := c.do(ctx, http.MethodPost, refundPath, payload, &body); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return RefundResult{Message: apiErr.message}, pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, "Failed to process refund: "+reason(apiErr.message))
		}
		return RefundResult{}, err
	}
	if !body.Success {
		return body, pkgerrors.New(pkgerrors.CodeDependency, "Failed to process refund: "+reason(body.Message)).
			WithDetails(map[string]string{"orderId": ref})
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, dest any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build orders request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute orders request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := &apiError{status: resp.StatusCode, message: strings.TrimSpace(string(raw))}
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil && strings.TrimSpace(envelope.Message) != "" {
			apiErr.message = strings.TrimSpace(envelope.Message)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, "orders request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode orders response")
	}
	return nil
}

// apiError is a non-2xx answer; message is the envelope message when present.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

func reason(msg string) string {
	if s := strings.TrimSpace(msg); s != "" {
		return s
	}
	return "unknown error"
}
