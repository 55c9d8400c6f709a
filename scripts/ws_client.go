// Package main runs a demo WebSocket client for the order event feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"orderbridge/internal/webhooks"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/orders/ws"}
	hdr := http.Header{}
	if tok := os.Getenv("OPERATOR_TOKEN"); tok != "" {
		hdr.Set("Authorization", "Bearer "+tok)
	}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger an order event via a signed webhook
	time.Sleep(500 * time.Millisecond)
	body := []byte(`{"id":"demo-1","order_number":"D1","line_items":[{"product_id":"1","current_quantity":1,"title":"Demo"}],"shipping_lines":[{"title":"Pickup Point"}]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/webhook/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhooks.SignatureHeader, webhooks.Sign(os.Getenv("WEBHOOK_SECRET"), body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("webhook -> %s", resp.Status)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
