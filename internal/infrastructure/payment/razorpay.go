package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
)

const defaultTimeout = 10 * time.Second

// Razorpay creates orders (payment intents) through the Razorpay REST API.
type Razorpay struct {
	client    *http.Client
	baseURL   string
	keyID     string
	keySecret string
}

func NewRazorpay(baseURL, keyID, keySecret string, client *http.Client) *Razorpay {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Razorpay{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateIntent(ctx context.Context, req dompayment.IntentRequest) (dompayment.Intent, error) {
	body, err := json.Marshal(createOrderRequest(req))
	if err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: encode request: %w", dompayment.ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: %w", dompayment.ErrGateway, err)
	}
	httpReq.SetBasicAuth(r.keyID, r.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: %w", dompayment.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: read response: %w", dompayment.ErrGateway, err)
	}
	if resp.StatusCode/100 != 2 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return dompayment.Intent{}, fmt.Errorf("%w: status %d: %s %s",
			dompayment.ErrGateway, resp.StatusCode, e.Error.Code, e.Error.Description)
	}

	var out createOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: decode response: %w", dompayment.ErrGateway, err)
	}
	if out.ID == "" {
		return dompayment.Intent{}, fmt.Errorf("%w: response carried no order id", dompayment.ErrGateway)
	}
	return dompayment.Intent{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
	}, nil
}
