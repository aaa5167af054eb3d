// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/api/handler"
	apimw "balance-ledger/internal/api/middleware"
	"balance-ledger/internal/domain"
)

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	AdminKeyHash string
	// UploadDir is served read-only to admins under /uploads when set.
	UploadDir string
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(balanceHandler *handler.BalanceHandler, requestHandler *handler.RequestHandler, cfg RouterConfig, logger *logrus.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	adminOnly := apimw.AdminAuth(cfg.AdminKeyHash, logger)

	health := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"status":"ok"}`))
	}
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)

		r.Route("/balance", func(r chi.Router) {
			r.Get("/user/{userID}", balanceHandler.GetUserBalance)
			r.Post("/ensure-initialized/{userID}", balanceHandler.EnsureInitialized)
			r.Post("/init/{userID}", balanceHandler.EnsureInitialized)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/add", balanceHandler.AddBalance)
				r.Post("/deduct", balanceHandler.DeductBalance)
				r.Get("/all", balanceHandler.ListBalances)
				r.Get("/history/{userID}", balanceHandler.GetHistory)
			})
		})

		r.Route("/withdraw", func(r chi.Router) {
			r.Post("/request", requestHandler.SubmitWithdraw)
			r.With(adminOnly).Get("/requests", requestHandler.ListByKind(domain.RequestKindWithdraw))
			r.With(adminOnly).Delete("/{requestID}", requestHandler.DeleteByKind(domain.RequestKindWithdraw))
		})

		r.Route("/cashout", func(r chi.Router) {
			r.Post("/request", requestHandler.SubmitCashout)
			r.With(adminOnly).Get("/requests", requestHandler.ListByKind(domain.RequestKindCashout))
			r.With(adminOnly).Delete("/{requestID}", requestHandler.DeleteByKind(domain.RequestKindCashout))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/user/{userID}", requestHandler.UserActivity)
			r.With(adminOnly).Post("/update-status", requestHandler.UpdateStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/transactions", requestHandler.ListAll)
			r.Get("/stats", requestHandler.Stats)
			r.Put("/{kind}/{requestID}/status", requestHandler.UpdateStatusByPath)
		})
	})

	if cfg.UploadDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.With(adminOnly).Get("/uploads/*", files.ServeHTTP)
	}

	return r
}
