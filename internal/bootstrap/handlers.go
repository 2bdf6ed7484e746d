package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/transcribe-stream/internal/bridge"
	"github.com/eleven-am/transcribe-stream/internal/health"
	"github.com/eleven-am/transcribe-stream/transcribe"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const version = "1.0.0"

func ProvideBridgeHandler(client *transcribe.Client, cfg *Config) *bridge.Handler {
	return bridge.NewHandler(client, bridge.Config{
		Language:           cfg.Language,
		SampleRateHz:       cfg.SampleRateHz,
		Encoding:           cfg.MediaEncoding,
		VocabularyName:     cfg.VocabularyName,
		SourceSampleRateHz: cfg.SourceSampleRateHz,
	}, slog.Default())
}

func ProvideHealthHandler() *health.Handler {
	return health.NewHandler(version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterRoutes(e *echo.Echo, bridgeHandler *bridge.Handler, healthHandler *health.Handler) {
	e.Use(metricsMiddleware(healthHandler))
	healthHandler.RegisterRoutes(e)
	bridgeHandler.RegisterRoutes(e.Group("/v1"))
}

var HandlersModule = fx.Options(
	fx.Provide(ProvideBridgeHandler),
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterRoutes),
)
