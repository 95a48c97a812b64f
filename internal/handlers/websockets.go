package handlers

import (
	"net/http"

	"countertime/internal/services/websocket"
)

// ViewWebsocketHandler streams preview frames and visit events to viewers.
func ViewWebsocketHandler(hub *websocket.HubService) http.HandlerFunc {
	return hub.Serve
}
