package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"vendocs/internal/session"
)

// RequireWebSocketUpgrade rejects plain HTTP requests on websocket routes.
func RequireWebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// WatchDocuments streams entitled-document snapshots over a websocket. Each
// connection runs its own session engine keyed by the uid query parameter
// (empty means unauthenticated, level 0). The stream follows the identity's
// live level: a profile change mid-connection resubscribes the document
// query and the client simply receives the new set.
func WatchDocuments(profiles session.ProfileSource, docs session.DocumentSource) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid := conn.Query("uid")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		engine := session.NewEngine(profiles, docs)
		defer engine.Stop()

		if err := engine.SetIdentity(ctx, uid); err != nil {
			conn.WriteJSON(fiber.Map{"error": "subscription failed"})
			return
		}

		// Reader loop: the client never sends payloads, but reading is the
		// only way to observe the close frame.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					engine.Stop()
					return
				}
			}
		}()

		for snap := range engine.Snapshots() {
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	})
}
