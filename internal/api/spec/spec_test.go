package spec

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandlerETag(t *testing.T) {
	h := OpenAPIHandler()

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Document(), w.Body.Bytes())
	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	r := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	r.Header.Set("If-None-Match", tag)
	w = httptest.NewRecorder()
	h(w, r)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestDocumentListsWebhook(t *testing.T) {
	assert.Contains(t, string(Document()), "/v1/webhooks/crypto-pay")
}
