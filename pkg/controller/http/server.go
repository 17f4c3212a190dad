package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

const DefaultMaxBodySize = 1 << 20

type Server struct {
	router        *chi.Mux
	uc            *usecase.UseCases
	webhookSecret string
	maxBodySize   int64
}

type Options func(*Server)

// WithWebhookSecret enables HMAC verification of inbound webhooks
func WithWebhookSecret(secret string) Options {
	return func(s *Server) {
		s.webhookSecret = secret
	}
}

func WithMaxBodySize(n int64) Options {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:      r,
		uc:          uc,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(bodyLimit(s.maxBodySize))

	r.Get("/health", healthHandler)

	r.Route("/hooks/crm", func(r chi.Router) {
		if s.webhookSecret != "" {
			r.Use(WebhookSignatureMiddleware(s.webhookSecret))
		}
		r.Post("/", webhookHandler(uc.Webhook))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", listUsersHandler(uc.User))
			r.Post("/refresh", refreshUsersHandler(uc.Sync))
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", getUserHandler(uc.User))
				r.Delete("/", deleteUserHandler(uc.User))
				r.Get("/categories", listUserCategoriesHandler(uc.Assignment))
				r.Post("/categories", setUserCategoriesHandler(uc.Assignment))
			})
		})

		r.Post("/locations/{locationID}/assign-all", assignAllHandler(uc.Assignment))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", listCategoriesHandler(uc.Category))
			r.Post("/", createCategoryHandler(uc.Category))
			r.Route("/{categoryID}", func(r chi.Router) {
				r.Get("/", getCategoryHandler(uc.Category))
				r.Put("/", updateCategoryHandler(uc.Category))
				r.Delete("/", deleteCategoryHandler(uc.Category))
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Get("/connect", authConnectHandler(uc.Auth))
			r.Get("/callback", authCallbackHandler(uc.Auth))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
