package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// TokenVerifier devolve o endereço autenticado pelo token
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// client serializa as escritas numa conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msgType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(msgType, b)
}

// Hub mantém as conexões WebSocket agrupadas pelo endereço da carteira.
// Cada conexão recebe apenas os avisos da própria conta.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	tokens   TokenVerifier

	mu sync.RWMutex
	// address -> conexões abertas
	subs map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger, tokens TokenVerifier, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		tokens:   tokens,
		subs:     make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) Register(r chi.Router) {
	r.Get("/ws", h.HandleWS)
}

// token aceita ?token= (navegadores não enviam header no handshake) ou Authorization: Bearer
func token(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// HandleWS autentica, inscreve a conexão no endereço do token e responde pings até o cliente sair
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	address, err := h.tokens.Verify(token(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.add(address, c)
	defer h.remove(address, c)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			_ = c.write(websocket.TextMessage, []byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) add(address string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[address]; !ok {
		h.subs[address] = make(map[*client]struct{})
	}
	h.subs[address][c] = struct{}{}
}

func (h *Hub) remove(address string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[address]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, address)
		}
	}
}

// Connections retorna quantas conexões estão abertas para o endereço
func (h *Hub) Connections(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[address])
}

// Broadcast envia o aviso para todas as conexões do endereço
func (h *Hub) Broadcast(n events.AccountNotification) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[n.Address]))
	for c := range h.subs[n.Address] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(n)
	if err != nil {
		h.log.Error("marshal notification", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", zap.String("address", n.Address), zap.Error(err))
		}
	}
}
