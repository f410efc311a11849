package dto

import "time"

type AccountResponse struct {
	Address     string    `json:"address"`
	DisplayName *string   `json:"displayName,omitempty"`
	Balance     string    `json:"balance"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SignInResponse struct {
	Status  bool            `json:"status"`
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

type DepositResponse struct {
	Status bool   `json:"status"`
	TxID   string `json:"txId"`
	Asset  string `json:"asset"`
	// endereço para onde o usuário envia o ativo
	Address string `json:"address"`
	Price   string `json:"price"`
}

type WithdrawalResponse struct {
	Status  bool   `json:"status"`
	TxID    string `json:"txId"`
	Asset   string `json:"asset"`
	Units   string `json:"units"`
	Price   string `json:"price"`
	Pending bool   `json:"pending"`
}

type ErrorResponse struct {
	Status  bool   `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}
