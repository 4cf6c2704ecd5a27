package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"campushub/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades an authenticated request to a websocket. Browsers cannot
// set headers on the upgrade, so the token may also arrive as a query
// parameter.
func Handler(manager *Manager, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = middleware.BearerToken(r.Header.Get("Authorization"))
		}
		if token == "" {
			http.Error(w, "token required", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ParseToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			manager.log.Warnw("ws upgrade failed", "err", err)
			return
		}

		client := newClient(claims.UserID, conn, manager)
		manager.register <- client

		go client.writePump()
		go client.readPump()
	}
}
