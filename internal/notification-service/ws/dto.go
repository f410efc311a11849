package ws

// ClientMsg é uma mensagem recebida do cliente WebSocket
// Type: ping (demais tipos são ignorados)
type ClientMsg struct {
	Type string `json:"type"`
}
