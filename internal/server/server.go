package server

import (
	"context"
	"log/slog"
	"net/http"
	"storefront-payments/internal/config"
	"storefront-payments/internal/handler"
	appmiddleware "storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo            *echo.Echo
	jwtSecret       []byte
	webhookHandler  *handler.WebhookHandler
	cartHandler     *handler.CartHandler
	checkoutHandler *handler.CheckoutHandler
	orderHandler    *handler.OrderHandler
}

func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	cartService service.CartService,
	checkoutService service.CheckoutService,
	orderService service.OrderService,
	reconciler service.OrderReconciler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HTTP.ReadTimeout
	e.Server.WriteTimeout = cfg.HTTP.WriteTimeout

	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:            e,
		jwtSecret:       []byte(cfg.Auth.JWTSecret),
		webhookHandler:  handler.NewWebhookHandler(reconciler, logger),
		cartHandler:     handler.NewCartHandler(cartService),
		checkoutHandler: handler.NewCheckoutHandler(checkoutService),
		orderHandler:    handler.NewOrderHandler(orderService, reconciler, logger),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/checkout/return", s.checkoutHandler.Return)

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- provider webhooks: authenticated by HMAC, not JWT --------
	api.POST("/webhooks/adyen", s.webhookHandler.AdyenNotification)

	auth := appmiddleware.AuthMiddleware(s.jwtSecret)

	cart := api.Group("/cart", auth)
	cart.GET("", s.cartHandler.GetCart)
	cart.POST("/items", s.cartHandler.AddItem)

	checkout := api.Group("/checkout", auth)
	checkout.POST("/sessions", s.checkoutHandler.StartCheckout)
	checkout.GET("/sessions/:orderID", s.checkoutHandler.GetSession)
	checkout.DELETE("/sessions/:sessionID", s.checkoutHandler.CancelSession)

	orders := api.Group("/orders", auth)
	orders.POST("/finalize", s.orderHandler.FinalizeOrder)
	orders.POST("/refund", s.orderHandler.RefundOrder)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.GET("/:id/notifications", s.orderHandler.GetNotifications)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error == nil {
				logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
				return nil
			}

			attrs = append(attrs, slog.String("error", v.Error.Error()))
			level := slog.LevelWarn
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
