package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"repuestos-backoffice/catalog"
	"repuestos-backoffice/database"
	"repuestos-backoffice/history"
	"repuestos-backoffice/middleware"
	"repuestos-backoffice/quotations"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Handler serves the back-office API.
type Handler struct {
	quotations  *quotations.Service
	catalog     *catalog.Catalog
	history     *history.Service
	store       database.Store
	auth        *middleware.Auth
	adminSecret string
	log         *zap.Logger
	timeout     time.Duration
}

type Deps struct {
	Quotations  *quotations.Service
	Catalog     *catalog.Catalog
	History     *history.Service
	Store       database.Store
	Auth        *middleware.Auth
	AdminSecret string
	Log         *zap.Logger
	Timeout     time.Duration
}

func New(d Deps) *Handler {
	if d.Timeout <= 0 {
		d.Timeout = defaultTimeout
	}
	return &Handler{
		quotations:  d.Quotations,
		catalog:     d.Catalog,
		history:     d.History,
		store:       d.Store,
		auth:        d.Auth,
		adminSecret: d.AdminSecret,
		log:         d.Log,
		timeout:     d.Timeout,
	}
}

func (h *Handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// respondError maps service errors onto status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	var stockErr *quotations.StockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"productId": stockErr.ProductID,
			"stock":     stockErr.Stock,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, quotations.ErrProductNotFound),
		errors.Is(err, quotations.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, quotations.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, quotations.ErrEmptyQuotation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, quotations.ErrInvalidInput),
		errors.Is(err, history.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, quotations.ErrConflictRetryExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Operación en conflicto, intente nuevamente"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Tiempo de espera agotado"})
	default:
		middleware.Logger(c, h.log).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
