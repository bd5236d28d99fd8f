package http

import (
	"context"

	"quant-platform/config"
	"quant-platform/internal/service"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/middleware"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	log       *logger.Logger
	validator *goValidator.Validate
	service   *service.Service
	cfg       config.API
}

func NewHttpAPIHandler(ctx context.Context, cfg config.API, echo *echo.Echo, log *logger.Logger, validator *goValidator.Validate, service *service.Service) *HttpAPIHandler {
	return &HttpAPIHandler{
		cfg:       cfg,
		echo:      echo,
		log:       log,
		validator: validator,
		service:   service,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	base := h.echo.Group("/api")
	admin := base.Group("/v1/admin", middleware.NewRateLimiterMiddleware(h.cfg.RateLimit))
	h.SetupHealth(admin)
	h.SetupScheduler(admin)
}
