package ipn

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// HeaderHMAC é o header com a assinatura do corpo
const HeaderHMAC = "HMAC"

// Tipos de IPN tratados
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
)

var ErrMalformed = errors.New("malformed ipn")

// Notification é uma IPN do processador (form-urlencoded)
type Notification struct {
	ID         string
	Type       string
	Address    string
	Status     int
	Currency   string
	Merchant   string
	Amount     *decimal.Decimal // quantidade do ativo
	FiatAmount *decimal.Decimal // valor já convertido pelo processador
}

// Complete indica status final de sucesso do processador
func (n Notification) Complete() bool { return n.Status >= 100 || n.Status == 2 }

// Failed indica erro ou cancelamento
func (n Notification) Failed() bool { return n.Status < 0 }

// Sign calcula o HMAC-SHA512 em hex do corpo bruto
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compara a assinatura em tempo constante
func Verify(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Parse lê os campos do corpo form-urlencoded
func Parse(body []byte) (Notification, error) {
	v, err := url.ParseQuery(string(body))
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	n := Notification{
		ID:       v.Get("ipn_id"),
		Type:     v.Get("ipn_type"),
		Address:  strings.ToLower(strings.TrimSpace(v.Get("address"))),
		Currency: v.Get("currency"),
		Merchant: v.Get("merchant"),
	}
	if n.ID == "" || n.Address == "" {
		return Notification{}, fmt.Errorf("%w: ipn_id and address are required", ErrMalformed)
	}
	if n.Type != TypeDeposit && n.Type != TypeWithdrawal {
		return Notification{}, fmt.Errorf("%w: unsupported ipn_type %q", ErrMalformed, n.Type)
	}

	n.Status, err = strconv.Atoi(v.Get("status"))
	if err != nil {
		return Notification{}, fmt.Errorf("%w: status: %v", ErrMalformed, err)
	}

	if n.Amount, err = optionalDecimal(v, "amount"); err != nil {
		return Notification{}, err
	}
	if n.FiatAmount, err = optionalDecimal(v, "fiat_amount"); err != nil {
		return Notification{}, err
	}
	return n, nil
}

func optionalDecimal(v url.Values, field string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(v.Get(field))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, field, err)
	}
	return &d, nil
}

// Encode monta o corpo de uma IPN; usado pelo simulador do processador
func Encode(n Notification) []byte {
	v := url.Values{}
	v.Set("ipn_id", n.ID)
	v.Set("ipn_type", n.Type)
	v.Set("address", n.Address)
	v.Set("status", strconv.Itoa(n.Status))
	v.Set("currency", n.Currency)
	v.Set("merchant", n.Merchant)
	if n.Amount != nil {
		v.Set("amount", n.Amount.String())
	}
	if n.FiatAmount != nil {
		v.Set("fiat_amount", n.FiatAmount.String())
	}
	return []byte(v.Encode())
}
