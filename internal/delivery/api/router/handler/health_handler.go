package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"phonebook/internal/delivery/api/response"
	deliverycontext "phonebook/internal/delivery/context"
	domainerrors "phonebook/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandlerParams holds dependencies for HealthHandler, injected by Fx.
type HealthHandlerParams struct {
	fx.In

	DB     *gorm.DB
	Redis  redis.UniversalClient `optional:"true"`
	Logger *slog.Logger
}

// HealthHandler reports whether the backing stores answer.
type HealthHandler struct {
	db     *gorm.DB
	redis  redis.UniversalClient
	logger *slog.Logger
}

// NewHealthHandler is the constructor for HealthHandler.
func NewHealthHandler(params HealthHandlerParams) *HealthHandler {
	return &HealthHandler{
		db:     params.DB,
		redis:  params.Redis,
		logger: params.Logger,
	}
}

// HealthResponse lists the state of each dependency.
type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// Check pings Postgres and Redis.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)
	status := HealthResponse{Status: "ok", Postgres: "ok", Redis: "disabled"}

	if err := h.pingPostgres(ctx); err != nil {
		logger.Error("Postgres health check failed", slog.Any("error", err))

		return response.HandleAppError(c, domainerrors.ErrUpstreamUnavailable.WrapMessage("postgres"))
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Error("Redis health check failed", slog.Any("error", err))

			return response.HandleAppError(c, domainerrors.ErrUpstreamUnavailable.WrapMessage("redis"))
		}
		status.Redis = "ok"
	}

	return response.Success(c, http.StatusOK, status)
}

func (h *HealthHandler) pingPostgres(ctx context.Context) error {
	var one int
	if err := h.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return err
	}
	if one != 1 {
		return domainerrors.ErrInternalError.WithDetails("unexpected health check result")
	}

	return nil
}
