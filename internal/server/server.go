package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/retail-orders-backend/internal/handler"
	appmw "github.com/shinyyama/retail-orders-backend/internal/middleware"
	"github.com/shinyyama/retail-orders-backend/internal/service"
)

type Deps struct {
	Auth      *appmw.AuthMiddleware
	Carts     service.CartService
	Orders    service.OrderService
	Inventory service.InventoryService
	Payments  service.PaymentService
	Customers service.CustomerService
	Notices   service.NotificationService
	Events    handler.EventParser
	SHA       string
	BuildTime string
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.CarryRequestID)
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "https" {
				return false, nil
			}
			return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
		},
	}))

	cartHandler := handler.NewCartHandler(d.Carts)
	orderHandler := handler.NewOrderHandler(d.Orders, d.Carts)
	paymentHandler := handler.NewPaymentHandler(d.Payments, d.Carts, d.Events)
	inventoryHandler := handler.NewInventoryHandler(d.Inventory)
	customerHandler := handler.NewCustomerHandler(d.Customers)
	notificationHandler := handler.NewNotificationHandler(d.Notices)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.SHA,
			"build_time": d.BuildTime,
		})
	})
	e.POST("/webhooks/payment", paymentHandler.Webhook)

	auth, optional := d.Auth.RequireAuth, d.Auth.OptionalAuth
	staff := []echo.MiddlewareFunc{auth, appmw.RequireStaff}

	api := e.Group("/api")
	api.GET("/me", customerHandler.GetMe, auth)
	api.PUT("/me", customerHandler.PutMe, auth)
	api.GET("/me/orders", orderHandler.ListMine, auth)
	api.GET("/me/notifications", notificationHandler.List, auth)
	api.POST("/me/notifications/read", notificationHandler.MarkAllRead, auth)

	api.POST("/cart/resolve", cartHandler.Resolve, optional)
	api.GET("/cart", cartHandler.Get, auth)
	api.POST("/cart/items", cartHandler.Add, optional)
	api.PUT("/cart/items", cartHandler.Update, optional)
	api.DELETE("/cart/items/:itemId/:variationId", cartHandler.Remove, optional)
	api.POST("/cart/sync", cartHandler.Sync, auth)
	api.DELETE("/cart", cartHandler.Clear, auth)

	api.POST("/orders", orderHandler.Create, auth)
	api.POST("/orders/pos", orderHandler.CreatePOS, staff...)
	api.GET("/orders/:id", orderHandler.Get, auth)
	api.POST("/orders/:id/verify", orderHandler.Verify, staff...)
	api.POST("/orders/:id/complete", orderHandler.Complete, staff...)
	api.POST("/orders/:id/cancel", orderHandler.Cancel, staff...)
	api.POST("/payments", paymentHandler.Start, auth)

	api.GET("/variations/:id/units", inventoryHandler.ListUnits, staff...)
	api.POST("/inventory/units", inventoryHandler.Stock, staff...)
	api.POST("/inventory/units/:id/hold", inventoryHandler.Hold, staff...)
	api.POST("/inventory/units/:id/release", inventoryHandler.Release, staff...)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Handler() http.Handler {
	return s.e
}
