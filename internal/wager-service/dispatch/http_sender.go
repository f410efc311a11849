package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/radieske/royalbet-wager-core/internal/shared/money"
)

type payoutRequest struct {
	PayoutID string `json:"payoutId"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Asset    string `json:"asset"`
}

type payoutResponse struct {
	Status string `json:"status"`
	TxHash string `json:"txHash"`
	Reason string `json:"reason,omitempty"`
}

// HTTPSender envia transferências para o gateway de pagamentos via HTTP
type HTTPSender struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPSender(base string) *HTTPSender {
	return &HTTPSender{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 3 * time.Second},
	}
}

// Send é idempotente do lado do gateway pelo PayoutID
func (s *HTTPSender) Send(ctx context.Context, t Transfer) (string, error) {
	body, _ := json.Marshal(payoutRequest{
		PayoutID: t.PayoutID,
		To:       t.To,
		Amount:   money.String(t.Amount),
		Asset:    t.Asset,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/payouts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", t.PayoutID)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("payout gateway http %d", res.StatusCode)
	}

	var out payoutResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Status != "sent" {
		return "", fmt.Errorf("payout rejected: %s", out.Reason)
	}
	return out.TxHash, nil
}
