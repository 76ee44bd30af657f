package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/quickbite-backend/api/responses"
	"github.com/quickbite/quickbite-backend/api/validators"
	ordersvc "github.com/quickbite/quickbite-backend/internal/orders"
	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
	"github.com/quickbite/quickbite-backend/pkg/logger"
	"github.com/quickbite/quickbite-backend/pkg/pagination"
)

// Client is the remote admin orders API.
type Client interface {
	List(ctx context.Context, params ordersvc.ListParams) (ordersvc.ListResult, error)
	InitiateRefund(ctx context.Context, ref string) (ordersvc.RefundResult, error)
}

// AdminOrderList proxies one page of orders. status and cancelledBy go to the
// remote API; refundStatus, from, to, search and sort narrow the page locally.
func AdminOrderList(client Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "orders api not configured"))
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		from, err := parseTime(q.Get("from"), "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := parseTime(q.Get("to"), "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := client.List(r.Context(), ordersvc.ListParams{
			Params:      pagination.Params{Page: page, Limit: limit},
			Status:      q.Get("status"),
			CancelledBy: q.Get("cancelledBy"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows := ordersvc.Filter{
			RefundStatus: strings.TrimSpace(q.Get("refundStatus")),
			From:         from,
			To:           to,
		}.Apply(result.Orders)
		rows = ordersvc.Search(rows, validators.SanitizeString(q.Get("search"), 128))
		if field := strings.TrimSpace(q.Get("sort")); field != "" {
			rows = ordersvc.SortBy(rows, field, strings.EqualFold(q.Get("order"), "desc"))
		}
		result.Orders = rows
		responses.WriteSuccess(w, result)
	}
}

// AdminOrderRefund starts a refund for the order's display id or document id.
func AdminOrderRefund(client Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "orders api not configured"))
			return
		}
		ref := strings.TrimSpace(chi.URLParam(r, "orderRef"))
		result, err := client.InitiateRefund(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "order_ref", ref), "refund initiated")
		}
		responses.WriteSuccess(w, result)
	}
}

func parseTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid date").WithDetails(map[string]string{"field": field})
	}
	if field == "to" {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
