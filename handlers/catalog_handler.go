package handlers

import (
	"net/http"
	"strconv"

	"repuestos-backoffice/catalog"

	"github.com/gin-gonic/gin"
)

// SearchProducts handles GET /products/search?q=&limit=
func (h *Handler) SearchProducts(c *gin.Context) {
	limit := catalog.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Límite inválido"})
			return
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	products, err := h.catalog.SearchProducts(ctx, c.Query("q"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListClients(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	clients, err := h.catalog.ListClients(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	employees, err := h.catalog.ListEmployees(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func (h *Handler) GetClient(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	client, err := h.catalog.GetClient(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	employee, err := h.catalog.GetEmployee(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}
