package events

import "time"

// AccountNotification é publicado no Redis Pub/Sub e repassado aos clientes WebSocket inscritos no endereço
type AccountNotification struct {
	Address string    `json:"address"`
	Type    string    `json:"type"` // deposit | withdrawal
	Status  string    `json:"status"`
	Amount  string    `json:"amount,omitempty"`
	Balance string    `json:"balance,omitempty"`
	TxID    string    `json:"tx_id"`
	Ts      time.Time `json:"ts"`
}
