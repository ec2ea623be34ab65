package handlers

import (
	"net/http"
	"sync"

	"repuestos-backoffice/history"
	"repuestos-backoffice/models"

	"github.com/gin-gonic/gin"
)

// latest keeps only the newest payload per event name, so a slow client
// never blocks the committing writer and always ends on the current state.
type latest struct {
	mu      sync.Mutex
	pending map[string]any
	order   []string
	ready   chan struct{}
}

func newLatest() *latest {
	return &latest{pending: make(map[string]any), ready: make(chan struct{}, 1)}
}

func (l *latest) push(event string, data any) {
	l.mu.Lock()
	if _, ok := l.pending[event]; !ok {
		l.order = append(l.order, event)
	}
	l.pending[event] = data
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latest) flush(c *gin.Context) {
	l.mu.Lock()
	order, pending := l.order, l.pending
	l.order, l.pending = nil, make(map[string]any)
	l.mu.Unlock()

	for _, event := range order {
		c.SSEvent(event, pending[event])
	}
	c.Writer.Flush()
}

func (l *latest) onError(err error) {
	l.push("error", gin.H{"error": err.Error()})
}

// serve writes events until the client goes away.
func (l *latest) serve(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			l.flush(c)
			return
		case <-l.ready:
			l.flush(c)
		}
	}
}

// StreamQuotation handles GET /quotations/:id/stream. It sends a
// "quotation" and an "items" event on connect and after every change.
func (h *Handler) StreamQuotation(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := h.withTimeout(c)
	_, err := h.quotations.Get(ctx, id)
	cancel()
	if err != nil {
		h.respondError(c, err)
		return
	}

	events := newLatest()
	stopQuotation, err := h.quotations.Watch(c.Request.Context(), id, func(q *models.Quotation) {
		events.push("quotation", q)
	}, events.onError)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer stopQuotation()

	stopItems, err := h.quotations.WatchItems(c.Request.Context(), id, func(items []models.QuotationItem) {
		events.push("items", items)
	}, events.onError)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer stopItems()

	events.serve(c)
}

// StreamClientPurchases handles GET /clients/:id/purchases/stream with the
// same query parameters as ClientPurchases. Each "purchases" event is a
// full page.
func (h *Handler) StreamClientPurchases(c *gin.Context) {
	f, ok := h.purchaseFilter(c)
	if !ok {
		return
	}

	events := newLatest()
	stop, err := h.history.WatchClientPurchases(c.Request.Context(), c.Param("id"), f, func(page *history.Page) {
		events.push("purchases", page)
	}, events.onError)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer stop()

	events.serve(c)
}
