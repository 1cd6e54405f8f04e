package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Topic: obrigatório para subscribe/unsubscribe (countdown, price:BTC, ...)
type ClientMsg struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// Update é o envelope enviado aos clientes e recebido do Pub/Sub
type Update struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}
