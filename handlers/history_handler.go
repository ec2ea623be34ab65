package handlers

import (
	"net/http"
	"strconv"
	"time"

	"repuestos-backoffice/history"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// ClientPurchases handles
// GET /clients/:id/purchases?period=&from=&to=&page=&perPage=
func (h *Handler) ClientPurchases(c *gin.Context) {
	f, ok := h.purchaseFilter(c)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	page, err := h.history.ListClientPurchases(ctx, c.Param("id"), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) purchaseFilter(c *gin.Context) (history.Filter, bool) {
	f := history.Filter{Period: history.Period(c.DefaultQuery("period", string(history.PeriodAll)))}
	loc := h.history.Location()

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Fecha inválida, use el formato AAAA-MM-DD"})
			return f, false
		}
		*p.dst = t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"perPage", &f.PerPage}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Paginación inválida"})
			return f, false
		}
		*p.dst = n
	}
	return f, true
}
