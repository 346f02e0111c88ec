package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"gpio_control_server/config"
	"gpio_control_server/pkg/logger"
)

// event-tail connects to the server's websocket and logs every device event
func main() {
	serverAddr := flag.String("server", "localhost:8080", "Server address")
	token := flag.String("token", "", "Operator token, if the server requires one")
	secure := flag.Bool("tls", false, "Use wss://")
	flag.Parse()

	log := logger.NewLogger(config.LoggingConfig{Level: "info", Format: "console"})

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	if *secure {
		u.Scheme = "wss"
	}
	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	log.Logger.Info().Str("url", u.String()).Msg("Connecting")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.FatalWithError(err, "dial failed")
	}
	defer c.Close()
	log.Info("WebSocket connected")

	// Keep the connection alive through proxies
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.ErrorWithError(err, "Failed to send ping")
				return
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			log.ErrorWithError(err, "WebSocket closed")
			os.Exit(1)
		}
		var msg struct {
			Type      string          `json:"type"`
			Timestamp string          `json:"timestamp"`
			Data      json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Logger.Warn().Str("raw", string(message)).Msg("Unreadable message")
			continue
		}
		log.Logger.Info().Str("type", msg.Type).Str("at", msg.Timestamp).RawJSON("data", msg.Data).Msg("event")
	}
}
