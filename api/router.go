package api

import (
	// Go Internal Packages
	"net/http"

	// External Packages
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NewRouter wires the public routes. Bill operations require a bearer token
// and are rate limited per client IP; the webhook is open to the biller.
func NewRouter(logger *zap.Logger, h *Handler, auth *Authenticator, limiter *RateLimiter, allowedOrigins []string) http.Handler {
	router := httprouter.New()
	router.PanicHandler = recoverPanics(logger)

	protected := func(next httprouter.Handle) httprouter.Handle {
		return limiter.Limit(auth.Authenticate(next))
	}

	router.GET("/health", h.Health)

	router.GET("/api/bbps/categories", h.Categories)
	router.GET("/api/bbps/locations", h.Locations)
	router.GET("/api/bbps/operators", h.Operators)
	router.GET("/api/bbps/operators/:operatorId", h.Operator)
	router.GET("/api/bbps/operators/:operatorId/parameters", h.OperatorParameters)
	router.GET("/api/bbps/subcategories", h.SubCategories)
	router.GET("/api/bbps/subcategories/:tag/operators", h.SubCategoryOperators)

	router.POST("/api/bbps/fetch", protected(h.FetchBill))
	router.POST("/api/bbps/pay", protected(h.PayBill))
	router.GET("/api/bbps/fetches", protected(h.ListFetches))
	router.GET("/api/bbps/payments", protected(h.ListPayments))
	router.GET("/api/bbps/payments/:id", protected(h.PaymentDetails))
	router.GET("/api/bbps/payments/:id/status", protected(h.PaymentStatus))

	router.POST("/api/bbps/webhook/eko", h.Webhook)
	router.GET("/api/bbps/webhook/health", h.WebhookHealth)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", HeaderRequestID},
		AllowCredentials: true,
	}).Handler(router)

	return accessLog(logger, securityHeaders(corsHandler))
}
