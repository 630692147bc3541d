package receivableshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-receivables/internal/platform/httpx"
)

const paymentRateWindow = time.Minute

// MountRoutes registers receivables endpoints under the caller's prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.paymentRateLimit, paymentRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "payment rate limit exceeded")
		}),
	)

	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.registerClient)
		r.Get("/{id}", h.getClient)
		r.Patch("/{id}", h.updateClient)
		r.Get("/{id}/credit-check", h.checkCredit)
	})
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.issueAccount)
		r.Get("/{id}", h.getAccount)
		r.Get("/{id}/payments", h.listPayments)
		r.With(limiter).Post("/{id}/payments", h.applyPayment)
	})
	r.Get("/delinquency", h.delinquencyReport)
	r.Get("/aging", h.agingReport)
}

// rateLimitKey limits per caller and per account.
func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key + ":account:" + chi.URLParam(r, "id"), nil
}
