package dto

type SignInRequest struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

type DisplayNameRequest struct {
	DisplayName string `json:"displayName"`
}

type DepositRequest struct {
	Asset string `json:"asset"` // ex: ETH, USDT
}

type WithdrawalRequest struct {
	Asset   string `json:"asset"`
	Address string `json:"address"` // destino on-chain
	Amount  string `json:"amount"`  // valor em dólar, duas casas
}
