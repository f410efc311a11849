package dto

type PayoutReq struct {
	PayoutID string `json:"payoutId"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Asset    string `json:"asset"`
}

type PayoutResp struct {
	Status string `json:"status"` // sent | rejected
	TxHash string `json:"txHash,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const (
	StatusSent     = "sent"
	StatusRejected = "rejected"
)

// SimulateDepositReq dispara a IPN de um depósito recebido no endereço
type SimulateDepositReq struct {
	Address string `json:"address"`
	Amount  string `json:"amount"` // quantidade do ativo
	Status  *int   `json:"status,omitempty"`
}
