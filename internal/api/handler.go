package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReceiptLister backs the order-confirmation view
type ReceiptLister interface {
	ReceiptsByUsername(ctx context.Context, username string) ([]models.Receipt, error)
}

// Handler contains HTTP handlers
type Handler struct {
	catalog  *service.CatalogService
	hub      *service.Hub
	sessions service.SessionRegistry
	receipts ReceiptLister
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. receipts may be nil.
func NewHandler(catalog *service.CatalogService, hub *service.Hub, sessions service.SessionRegistry, receipts ReceiptLister) *Handler {
	return &Handler{
		catalog:  catalog,
		hub:      hub,
		sessions: sessions,
		receipts: receipts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.PUT("/session", h.registerSession)
		v1.DELETE("/session", h.destroySession)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/search", h.searchProducts)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:id", h.updateCartItem)

		v1.POST("/checkout/begin", h.beginCheckout)
		v1.GET("/checkout/addresses", h.listAddresses)
		v1.POST("/checkout/addresses", h.addAddress)
		v1.DELETE("/checkout/addresses/:id", h.deleteAddress)
		v1.POST("/checkout/select", h.selectAddress)
		v1.POST("/checkout/order", h.placeOrder)

		v1.GET("/orders", h.listOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

// session rebuilds the session value from the Authorization header. An
// unknown or absent token yields the zero session, which fails the gate
// inside the engines.
func (h *Handler) session(c *gin.Context) models.Session {
	token := bearerToken(c)
	if token == "" {
		return models.Session{}
	}

	session, err := h.sessions.LoadSession(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("Session lookup failed", zap.Error(err))
		return models.Session{}
	}
	return session
}

func (h *Handler) registerSession(c *gin.Context) {
	var session models.Session
	if err := c.ShouldBindJSON(&session); err != nil || session.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session payload"})
		return
	}

	if err := h.sessions.SaveSession(c.Request.Context(), session); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": session.Username, "balance": session.Balance})
}

func (h *Handler) destroySession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}

	if err := h.sessions.DeleteSession(c.Request.Context(), token); err != nil {
		h.respondError(c, err)
		return
	}
	h.hub.Drop(token)
	c.Status(http.StatusNoContent)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.FetchAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// searchProducts debounces per session: a burst of keystroke requests
// collapses into one backend call and every request in the burst receives
// the final query's result. An empty result is a valid 200, the "no
// products found" affordance belongs to the view.
func (h *Handler) searchProducts(c *gin.Context) {
	query := c.Query("value")
	engines := h.hub.Engines(bearerToken(c))

	products, err := engines.Searcher.Do(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getCart(c *gin.Context) {
	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	cart, err := engines.Cart.Refresh(c.Request.Context(), session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	cart, err := engines.Cart.Add(c.Request.Context(), session, req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req struct {
		Qty *int `json:"qty" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	cart, err := engines.Cart.UpdateQuantity(c.Request.Context(), session, c.Param("id"), *req.Qty)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) beginCheckout(c *gin.Context) {
	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	if err := engines.Checkout.Begin(c.Request.Context(), session); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":     engines.Checkout.State(),
		"addresses": engines.Checkout.Addresses(),
		"cart":      engines.Cart.Current(),
	})
}

func (h *Handler) listAddresses(c *gin.Context) {
	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	c.JSON(http.StatusOK, gin.H{
		"addresses": engines.Checkout.Addresses(),
		"selected":  engines.Checkout.SelectedAddress(),
	})
}

func (h *Handler) addAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	if err := engines.Checkout.AddAddress(c.Request.Context(), session, req.Address); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": engines.Checkout.Addresses()})
}

func (h *Handler) deleteAddress(c *gin.Context) {
	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	if err := engines.Checkout.DeleteAddress(c.Request.Context(), session, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"addresses": engines.Checkout.Addresses(),
		"selected":  engines.Checkout.SelectedAddress(),
	})
}

func (h *Handler) selectAddress(c *gin.Context) {
	var req struct {
		AddressID string `json:"addressId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	if err := engines.Checkout.SelectAddress(req.AddressID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": engines.Checkout.SelectedAddress()})
}

func (h *Handler) placeOrder(c *gin.Context) {
	session := h.session(c)
	engines := h.hub.Engines(session.Token)

	updated, err := engines.Checkout.PlaceOrder(c.Request.Context(), session)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Mirror the confirmed balance back into the registry
	if err := h.sessions.SaveSession(c.Request.Context(), updated); err != nil {
		h.logger.Error("Failed to persist updated balance", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"state":   engines.Checkout.State(),
		"balance": updated.Balance,
		"cart":    engines.Cart.Current(),
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	session := h.session(c)
	if err := service.RequireSession(session); err != nil {
		h.respondError(c, err)
		return
	}
	if h.receipts == nil {
		c.JSON(http.StatusOK, gin.H{"orders": []models.Receipt{}})
		return
	}

	receipts, err := h.receipts.ReceiptsByUsername(c.Request.Context(), session.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": receipts})
}

// respondError maps the error taxonomy onto HTTP statuses. No failure is
// fatal: validation and auth errors are the caller's to fix, transport
// and backend errors are retryable.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var authErr *service.AuthError
	var networkErr *service.NetworkError
	var serverErr *service.ServerError

	switch {
	case errors.Is(err, service.ErrLineBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Msg})
	case errors.As(err, &networkErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unreachable, please retry"})
	case errors.As(err, &serverErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": serverErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
