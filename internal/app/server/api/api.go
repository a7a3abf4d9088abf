// GET    /api/v1/health                                  # Состояние сервиса (публичный)
// POST   /api/v1/auth/anonymous                          # Анонимная сессия (публичный)
// GET    /api/v1/collections/{collection}/documents      # Список документов (auth)
// POST   /api/v1/collections/{collection}/documents      # Создать/перезаписать документ (auth)
// PUT    /api/v1/collections/{collection}/documents/{id} # Обновить поля (auth)
// DELETE /api/v1/collections/{collection}/documents/{id} # Удалить документ (auth)
// GET    /api/v1/collections/{collection}/stream         # Лента изменений SSE (auth)
// GET    /metrics                                        # Prometheus
// GET    /*                                              # Оболочка приложения

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	documentAPI "repairjournal/internal/app/server/api/http/document"
	healthAPI "repairjournal/internal/app/server/api/http/health"
	"repairjournal/internal/app/server/api/http/middleware"
	"repairjournal/internal/app/server/api/http/middleware/auth"
	"repairjournal/internal/app/server/api/http/middleware/logger"
	sessionAPI "repairjournal/internal/app/server/api/http/session"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/session"
	"repairjournal/web"
)

// Deps - сервисы, которые нужны обработчикам
type Deps struct {
	DB        healthAPI.Pinger
	Sessions  session.Servicer
	Documents document.Servicer
	Changes   document.Subscriber
}

type Handlers struct {
	Health   *healthAPI.Handler
	Session  *sessionAPI.Handler
	Document *documentAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Repair Journal API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	h := handlers(deps, log)
	h.Health.SetupRoutes(API)
	h.Session.SetupRoutes(API)
	h.Document.SetupRoutes(API)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/*", web.Handler())

	return mux
}

func handlers(deps Deps, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.Sessions, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(deps.DB, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	sessionHandler := sessionAPI.NewHandler(deps.Sessions, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	documentHandler := documentAPI.NewHandler(deps.Documents, deps.Changes, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Session:  sessionHandler,
		Document: documentHandler,
	}
}
