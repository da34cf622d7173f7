package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/apperr"
)

// Intent is the payment intent handed to the settlement service.
type Intent struct {
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	UserEmail string          `json:"userEmail"`
}

// Initiator is the outbound port the orchestrator uses to kick off
// settlement after the order commits.
type Initiator interface {
	Initiate(ctx context.Context, baseURL string, intent Intent) error
}

// HTTPClient calls POST {base}/process and expects 202 Accepted.
type HTTPClient struct {
	client *http.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: 4 * time.Second}}
}

func (c *HTTPClient) Initiate(ctx context.Context, baseURL string, intent Intent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "payment service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Downstream(
			fmt.Sprintf("payment intent rejected: %s", string(msg)),
			resp.StatusCode, nil)
	}
	return nil
}
