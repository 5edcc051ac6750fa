package wsocket

import (
	"context"
	"net/http"

	"textcleaner_go_backend/internal/models"
	"textcleaner_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler pushes submission and payment outcomes to connected clients. The
// connection is read-only for the client; submissions still go through the
// HTTP API.
type Handler struct {
	broker   *broker.Broker
	upgrader websocket.Upgrader
}

func NewHandler(messageBroker *broker.Broker, upgrader websocket.Upgrader) *Handler {
	return &Handler{
		broker:   messageBroker,
		upgrader: upgrader,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, session models.Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outcomes := h.broker.Subscribe(session.ID)
	defer h.broker.Unsubscribe(session.ID, outcomes)

	go writeOutcomes(ctx, conn, session.ID, outcomes)

	// The read loop exists only to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writeOutcomes pushes outcomes to the client until the context ends, the
// subscription channel closes, or a write fails.
func writeOutcomes(ctx context.Context, conn *websocket.Conn, sessionID string, outcomes <-chan models.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case outcome, ok := <-outcomes:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outcome); err != nil {
				log.Debug().Err(err).Str("session", sessionID).Msg("failed to push outcome")
				return
			}
		}
	}
}
