package internal

import (
	"context"
	"embed"
	"net/http"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/config"
	"erp-asset-api/internal/handlers"
	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

//go:embed openapi
var openapiFS embed.FS

// Store is the persistence the HTTP layer needs: the lifecycle store plus
// catalog reads and writes.
type Store interface {
	lifecycle.Store
	Ping(ctx context.Context) error
	ListAssets(ctx context.Context, f models.AssetFilter) ([]models.Asset, int, error)
	CreateAsset(ctx context.Context, req models.CreateAssetRequest, actor string) (*models.Asset, error)
	UpdateAsset(ctx context.Context, assetID string, attrs models.AssetAttributes, actor string) (*models.Asset, error)
	Events(ctx context.Context, assetPK int64) ([]models.AssetEvent, error)
	MaintenanceLogs(ctx context.Context, assetPK int64) ([]models.MaintenanceLog, error)
	AddMaintenanceLog(ctx context.Context, asset *models.Asset, m *models.MaintenanceLog, actor string) error
	Categories(ctx context.Context, skip, limit int) ([]models.Category, error)
}

type Server struct {
	Store      Store
	Manager    *lifecycle.Manager
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Imports    *handlers.ImportsHandler
	Logger     zerolog.Logger

	cfg         *config.Config
	managerOpts []lifecycle.Option
}

// Option customises a Server.
type Option func(*Server)

// WithImports mounts the spreadsheet import endpoint.
func WithImports(h *handlers.ImportsHandler) Option {
	return func(s *Server) { s.Imports = h }
}

// WithLogger sets the base request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// WithManagerOptions passes extra options to the lifecycle manager.
func WithManagerOptions(opts ...lifecycle.Option) Option {
	return func(s *Server) { s.managerOpts = append(s.managerOpts, opts...) }
}

func NewServer(cfg *config.Config, store Store, opts ...Option) *Server {
	s := &Server{
		Store:      store,
		Router:     chi.NewRouter(),
		JWTManager: auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry),
		Metrics:    NewMetrics(),
		Logger:     zerolog.Nop(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	managerOpts := append([]lifecycle.Option{
		lifecycle.WithLogger(s.Logger),
		lifecycle.WithRecorder(s.Metrics),
	}, s.managerOpts...)
	s.Manager = lifecycle.NewManager(store, managerOpts...)

	// chi requires every middleware before the first route
	s.Router.Use(RequestLogger(s.Logger))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(CORS(cfg.AllowedOrigins))
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}
	if cfg.RequestTimeout > 0 {
		s.Router.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	if cfg.EnableSwagger {
		s.mountDocs(s.Router)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		auth.WriteErrorResponse(w, "database unavailable", "DB_UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// mountDocs serves the OpenAPI spec and Swagger UI
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>ERP Asset API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
    <style>
        body { margin: 0; background: #f7f7f7; }
        .swagger-ui .topbar .download-url-wrapper { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}

// mountProtectedRoutes mounts all routes that require a bearer token.
// Write endpoints check roles inside the handler.
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", s.listAssets)
		r.Post("/", s.createAsset)
		r.Get("/assigned", s.listAssignedAssets)

		r.Route("/{asset_id}", func(r chi.Router) {
			r.Get("/", s.getAsset)
			r.Put("/", s.updateAsset)
			r.Delete("/", s.deleteAsset)

			r.Post("/assign", s.assignAsset)
			r.Post("/return", s.returnAsset)
			r.Post("/status", s.changeStatus)
			r.Get("/assignment", s.currentAssignment)
			r.Get("/events", s.assetEvents)
		})
	})

	r.Get("/history/{asset_id}", s.assignmentHistory)

	r.Get("/maintenance/{asset_id}", s.listMaintenance)
	r.Post("/maintenance/{asset_id}", s.createMaintenance)

	r.Get("/categories", s.listCategories)

	if s.Imports != nil {
		r.Post("/imports/excel", s.Imports.UploadExcel)
	}
}
