package receivableshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-receivables/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-receivables/internal/receivables"
)

// IdempotencyHeader carries the client-chosen submission key for payments.
const IdempotencyHeader = "Idempotency-Key"

const defaultPaymentRateLimit = 30

type receivablesService interface {
	RegisterClient(ctx context.Context, input receivables.ClientInput) (*receivables.Client, error)
	UpdateClient(ctx context.Context, id int64, update receivables.ClientUpdate) (*receivables.Client, error)
	GetClient(ctx context.Context, id int64) (*receivables.Client, error)
	CheckCredit(ctx context.Context, clientID int64, amount receivables.Money) (receivables.CreditDecision, error)
	IssueAccount(ctx context.Context, input receivables.AccountInput) (*receivables.Account, error)
	GetAccount(ctx context.Context, id int64) (*receivables.Account, error)
	ListAccounts(ctx context.Context, filter receivables.AccountFilter) ([]receivables.Account, error)
	ListPayments(ctx context.Context, accountID int64) ([]receivables.Payment, error)
	ApplyPayment(ctx context.Context, input receivables.PaymentInput) (*receivables.Account, error)
	DelinquencyReport(ctx context.Context, asOf time.Time) (receivables.DelinquencyReport, error)
	AgingReport(ctx context.Context, asOf time.Time) (receivables.AgingReport, error)
}

// Handler exposes the receivables engine over JSON.
type Handler struct {
	logger           *slog.Logger
	service          receivablesService
	validate         *validator.Validate
	paymentRateLimit int
}

// NewHandler constructs a receivables HTTP handler. A non-positive
// paymentRateLimit falls back to 30 payments per minute per caller and account.
func NewHandler(logger *slog.Logger, service receivablesService, paymentRateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if paymentRateLimit <= 0 {
		paymentRateLimit = defaultPaymentRateLimit
	}
	return &Handler{
		logger:           logger,
		service:          service,
		validate:         validator.New(),
		paymentRateLimit: paymentRateLimit,
	}
}

func (h *Handler) registerClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.RegisterClient(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, "register client", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.UpdateClient(r.Context(), id, req.update())
	if err != nil {
		h.fail(w, r, "update client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) checkCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var amount int64
	if raw := strings.TrimSpace(r.URL.Query().Get("amount")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: amount must be an integer", httpx.ErrValidation))
			return
		}
		amount = parsed
	}
	decision, err := h.service.CheckCredit(r.Context(), id, receivables.Money(amount))
	if err != nil {
		h.fail(w, r, "check credit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) issueAccount(w http.ResponseWriter, r *http.Request) {
	var req issueAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := req.input()
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: due_date: %v", httpx.ErrValidation, err))
		return
	}
	acct, err := h.service.IssueAccount(r.Context(), input)
	if err != nil {
		h.fail(w, r, "issue account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter receivables.AccountFilter
	if raw := strings.TrimSpace(query.Get("client_id")); raw != "" {
		clientID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || clientID <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: client_id must be a positive integer", httpx.ErrValidation))
			return
		}
		filter.ClientID = clientID
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := receivables.AccountStatus(strings.ToUpper(raw))
		if !status.Valid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, raw))
			return
		}
		filter.Status = status
	}
	accounts, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(accounts))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	acct, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newList(payments))
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	acct, err := h.service.ApplyPayment(r.Context(), req.input(id, key))
	if err != nil {
		h.fail(w, r, "apply payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) delinquencyReport(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}
	report, err := h.service.DelinquencyReport(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, "delinquency report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) agingReport(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}
	report, err := h.service.AgingReport(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, "aging report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body: %v", httpx.ErrValidation, err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, describeValidation(err)))
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: id must be a positive integer", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}

func parseAsOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return time.Time{}, true
	}
	asOf, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: as_of must be YYYY-MM-DD", httpx.ErrValidation))
		return time.Time{}, false
	}
	return asOf, true
}

// fail translates engine errors into problem responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	mapped := classify(err)
	if mapped == nil {
		h.logger.Error(op,
			slog.String("request_path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
		return
	}
	httpx.RespondError(w, mapped)
}

func classify(err error) error {
	switch {
	case errors.Is(err, receivables.ErrNotFound):
		return fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, receivables.ErrAccountClosed),
		errors.Is(err, receivables.ErrDuplicateEntry):
		return fmt.Errorf("%w: %w", httpx.ErrConflict, err)
	case errors.Is(err, receivables.ErrInvalidAmount),
		errors.Is(err, receivables.ErrOverpayment):
		return fmt.Errorf("%w: %w", httpx.ErrUnprocessable, err)
	case errors.Is(err, receivables.ErrBusinessNameRequired),
		errors.Is(err, receivables.ErrNegativeCreditLimit),
		errors.Is(err, receivables.ErrClientRequired),
		errors.Is(err, receivables.ErrOriginalAmount),
		errors.Is(err, receivables.ErrDueDateRequired),
		errors.Is(err, receivables.ErrInvalidMethod):
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return nil
}
