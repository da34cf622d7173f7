package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-fulfillment/internal/apperr"
)

func TestHTTPClient_Adjust(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient()
	err := c.Adjust(context.Background(), srv.URL, Adjustment{
		VariantID:      "var-1",
		ChangeQuantity: -2,
		Type:           TypeOrder,
		RelatedOrderID: "order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/stock/adjust/var-1", gotPath)
	assert.Equal(t, float64(-2), gotBody["changeQuantity"])
	assert.Equal(t, TypeOrder, gotBody["type"])
	assert.Equal(t, "order-1", gotBody["relatedOrderId"])
	// The variant id travels in the path, not the body.
	assert.NotContains(t, gotBody, "variantId")
}

func TestHTTPClient_RejectionKeepsRemoteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient stock", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient()
	err := c.Adjust(context.Background(), srv.URL, Adjustment{
		VariantID: "var-1", ChangeQuantity: -2, Type: TypeOrder,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDownstream))
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))
	assert.Contains(t, err.Error(), "insufficient stock")
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	c := NewHTTPClient()
	err := c.Adjust(context.Background(), srv.URL, Adjustment{
		VariantID: "var-1", ChangeQuantity: -2, Type: TypeOrder,
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(err))
}
