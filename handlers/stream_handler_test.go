package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stream opens path with a context that is already done, so the handler
// sends the current state once and returns.
func (s *server) stream(path string) *httptest.ResponseRecorder {
	s.t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestStreamQuotation(t *testing.T) {
	s := newServer(t)
	q := s.createQuotation(map[string]any{"clientId": "cli-001"})
	w := s.do(http.MethodPost, "/quotations/"+q.ID+"/items", map[string]any{"productId": "prd-bujia", "quantity": 2, "unitPrice": 38.5}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.stream("/quotations/" + q.ID + "/stream")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Contains(t, body, "event:quotation")
	assert.Contains(t, body, `"total":77`)
	assert.Contains(t, body, "event:items")
	assert.Contains(t, body, `"productId":"prd-bujia"`)

	w = s.stream("/quotations/missing/stream")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamClientPurchases(t *testing.T) {
	s := newServer(t)
	q := s.createQuotation(map[string]any{"clientId": "cli-001"})
	w := s.do(http.MethodPost, "/quotations/"+q.ID+"/items", map[string]any{"productId": "prd-bujia", "quantity": 1, "unitPrice": 38.5}, true)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/quotations/"+q.ID+"/confirm", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.stream("/clients/cli-001/purchases/stream?period=month")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:purchases")
	assert.Contains(t, w.Body.String(), `"totalCount":1`)

	w = s.stream("/clients/cli-001/purchases/stream?period=decade")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestKeepsNewestPerEvent(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	l := newLatest()
	l.push("quotation", gin.H{"total": 10})
	l.push("items", []string{"a"})
	l.push("quotation", gin.H{"total": 20})
	l.flush(c)

	body := w.Body.String()
	assert.NotContains(t, body, `"total":10`)
	assert.Contains(t, body, `"total":20`)
	assert.Less(t, strings.Index(body, "event:quotation"), strings.Index(body, "event:items"))

	// Nothing new since the last flush.
	before := w.Body.Len()
	l.flush(c)
	assert.Equal(t, before, w.Body.Len())
}

func TestGetClientAndEmployee(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/clients/cli-001", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dni":"45879632"`)

	w = s.do(http.MethodGet, "/employees/emp-002", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Administradora")

	w = s.do(http.MethodGet, "/clients/nadie", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/employees/nadie", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
