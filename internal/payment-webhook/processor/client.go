package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DepositAddressRequest pede um endereço exclusivo para um depósito
type DepositAddressRequest struct {
	Asset     string `json:"asset"`
	Reference string `json:"reference"` // id da transação pendente
}

type DepositAddressResponse struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

// WithdrawalRequest pede o envio de Amount do ativo para Address
type WithdrawalRequest struct {
	Reference string `json:"reference"`
	Asset     string `json:"asset"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
}

type WithdrawalResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client fala com a API do processador de pagamentos.
// Confirmações chegam depois por IPN no payment-webhook-service.
type Client struct {
	BaseURL    string
	MerchantID string
	HTTP       *http.Client
}

func New(base, merchantID string) *Client {
	return &Client{
		BaseURL:    base,
		MerchantID: merchantID,
		HTTP:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) DepositAddress(ctx context.Context, asset, reference string) (string, error) {
	var out DepositAddressResponse
	if err := c.post(ctx, "/deposit-addresses", DepositAddressRequest{Asset: asset, Reference: reference}, &out); err != nil {
		return "", err
	}
	if out.Address == "" {
		return "", fmt.Errorf("processor returned empty deposit address")
	}
	return out.Address, nil
}

func (c *Client) Withdraw(ctx context.Context, reference, asset, address string, amount decimal.Decimal) (string, error) {
	var out WithdrawalResponse
	req := WithdrawalRequest{Reference: reference, Asset: asset, Address: address, Amount: amount.String()}
	if err := c.post(ctx, "/withdrawals", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.MerchantID)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("processor %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("processor %s http %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("processor %s decode: %w", path, err)
	}
	return nil
}
