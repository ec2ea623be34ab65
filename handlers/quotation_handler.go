package handlers

import (
	"context"
	"net/http"

	"repuestos-backoffice/middleware"
	"repuestos-backoffice/models"
	"repuestos-backoffice/quotations"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createQuotationRequest struct {
	Number        string               `json:"number"`
	ClientID      string               `json:"clientId"`
	EmployeeID    string               `json:"employeeId"`
	Plate         string               `json:"plate"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Notes         string               `json:"notes"`
}

type itemRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" binding:"required,gt=0"`
}

type updateItemRequest struct {
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" binding:"required,gt=0"`
}

func (h *Handler) CreateQuotation(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos"})
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	q, err := h.quotations.Create(ctx, quotations.CreateInput{
		Number:        req.Number,
		ClientID:      req.ClientID,
		EmployeeID:    req.EmployeeID,
		Plate:         req.Plate,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// GetQuotation returns the quotation with its lines.
func (h *Handler) GetQuotation(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	id := c.Param("id")
	q, err := h.quotations.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items, err := h.quotations.Items(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotation": q, "items": items})
}

func (h *Handler) SetNumber(c *gin.Context) {
	var req struct {
		Number string `json:"number"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetNumber(ctx, id, req.Number)
	})
}

func (h *Handler) SetClient(c *gin.Context) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetClient(ctx, id, req.ClientID)
	})
}

func (h *Handler) SetEmployee(c *gin.Context) {
	var req struct {
		EmployeeID string `json:"employeeId"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetEmployee(ctx, id, req.EmployeeID)
	})
}

func (h *Handler) SetPlate(c *gin.Context) {
	var req struct {
		Plate string `json:"plate"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetPlate(ctx, id, req.Plate)
	})
}

func (h *Handler) SetPaymentMethod(c *gin.Context) {
	var req struct {
		PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetPaymentMethod(ctx, id, req.PaymentMethod)
	})
}

func (h *Handler) SetNotes(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	h.bindHeader(c, &req, func(ctx context.Context, id string) (*models.Quotation, error) {
		return h.quotations.SetNotes(ctx, id, req.Notes)
	})
}

func (h *Handler) bindHeader(c *gin.Context, req any, apply func(ctx context.Context, id string) (*models.Quotation, error)) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos"})
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	q, err := apply(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) AddItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Producto, cantidad y precio mayor a cero son requeridos"})
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	res, err := h.quotations.AddItem(ctx, c.Param("id"), req.ProductID, req.Quantity, decimal.NewFromFloat(req.UnitPrice))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cantidad y precio deben ser mayores a cero"})
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	res, err := h.quotations.UpdateItem(ctx, c.Param("id"), c.Param("itemId"), req.Quantity, decimal.NewFromFloat(req.UnitPrice))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	res, err := h.quotations.RemoveItem(ctx, c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Confirm converts the quotation into a sale. A client must be assigned and
// the quotation must have lines.
func (h *Handler) Confirm(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	id := c.Param("id")
	q, err := h.quotations.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if q.ClientID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Debe asignar un cliente antes de confirmar la cotización"})
		return
	}
	items, err := h.quotations.Items(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "La cotización no tiene productos"})
		return
	}

	operatorID := ""
	if user, err := h.findUser(ctx, middleware.UserID(c)); err == nil {
		operatorID = user.EmployeeID
	}

	res, err := h.quotations.Confirm(ctx, id, operatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	q, err := h.quotations.Cancel(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
