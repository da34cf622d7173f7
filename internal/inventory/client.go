// Package inventory is the HTTP client for the catalog service's stock
// adjustment endpoint, the synchronous leg of the placement saga.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/ec-fulfillment/internal/apperr"
)

// Adjustment types understood by the inventory endpoint.
const (
	TypeOrder         = "ORDER"
	TypeOrderRollback = "ORDER_ROLLBACK"
)

// Adjustment is one stock delta. ChangeQuantity is negative for a
// reservation and positive for a compensating release. RelatedOrderID gives
// the inventory service an audit trail back to the order.
type Adjustment struct {
	VariantID      string `json:"-"`
	ChangeQuantity int    `json:"changeQuantity"`
	Type           string `json:"type"`
	Reason         string `json:"reason,omitempty"`
	RelatedOrderID string `json:"relatedOrderId"`
}

// Adjuster is the outbound port the orchestrator depends on.
type Adjuster interface {
	Adjust(ctx context.Context, baseURL string, adj Adjustment) error
}

// HTTPClient calls POST {base}/stock/adjust/{variantId}. Calls use a short
// timeout; on timeout the callee is treated as unavailable and the enclosing
// operation fails without retry.
type HTTPClient struct {
	client *http.Client
}

const callTimeout = 4 * time.Second

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: callTimeout}}
}

func (c *HTTPClient) Adjust(ctx context.Context, baseURL string, adj Adjustment) error {
	body, err := json.Marshal(adj)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/stock/adjust/%s", baseURL, adj.VariantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperr.Wrap(apperr.KindUnavailable, "inventory service timed out", err)
		}
		return apperr.Wrap(apperr.KindUnavailable, "inventory service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Downstream(
			fmt.Sprintf("stock adjust rejected for variant %s: %s", adj.VariantID, string(msg)),
			resp.StatusCode, nil)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
