package wire

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/adaptor"
	"storefront/internal/data/repository"
	"storefront/internal/notify"
	"storefront/internal/usecase"
	"storefront/pkg/middleware"
	"storefront/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Router *chi.Mux
}

// Wiring builds services, handlers and routes from already constructed
// infrastructure.
func Wiring(
	repo *repository.Repository,
	db Pinger,
	notifier notify.Notifier,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	jwt := utils.NewJWTManager(config.JWT, config.App.Name)
	service := usecase.NewService(repo, jwt, notifier, config, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router: setupRouter(handler, jwt, db, config, logger),
	}
}

func setupRouter(
	handler *adaptor.Handler,
	jwt middleware.TokenParser,
	db Pinger,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigin))

	auth := middleware.Auth(jwt, logger)

	wireAuth(r, handler.Auth, handler.User, auth)
	wireProduct(r, handler.Product, auth, logger)
	wireOrder(r, handler.Order, auth)

	r.Get("/api/health", health(db))

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			utils.ResponseServiceUnavailable(w, "Database unreachable")
			return
		}
		utils.ResponseSuccess(w, "OK", nil)
	}
}
