package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingEvery = 20 * time.Second
	wsReadWait  = 60 * time.Second
	wsWriteWait = 5 * time.Second
	wsReadLimit = 1 << 16
)

type wsMessage struct {
	Type    string      `json:"type"`
	Payload *OrderEvent `json:"payload,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	allow := s.Config.AllowOrigin
	return &websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allow == "" || allow == "*" || origin == allow
	}}
}

// OrdersWSHandler handles GET /orders/ws: a push-only feed of order events.
func (s *Server) OrdersWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(ordersTopic)
	defer s.Broker.Unsubscribe(ordersTopic, ch)

	// reader: only control frames and close are expected
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsReadWait)) })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(m wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}
	if err := write(wsMessage{Type: "connection_ack"}); err != nil {
		return
	}
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(wsMessage{Type: "next", Payload: &evt}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
