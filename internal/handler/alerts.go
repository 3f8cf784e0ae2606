package handler

import (
	"net/http"

	"firewatch/internal/logger"
	"firewatch/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// AlertsWebsocketHandler registers viewers with the hub so they receive
// alert events as JSON text messages.
func AlertsWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Alert viewer disconnected normally")
				} else {
					logger.Warning("Alert viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
