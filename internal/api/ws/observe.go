package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/memory"
)

// Subscriber is the slice of the memory store the observer endpoint needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Observer streams a session's live events to a read-only WebSocket client.
type Observer struct {
	subscriber Subscriber
}

func NewObserver(subscriber Subscriber) *Observer {
	return &Observer{subscriber: subscriber}
}

// ServeObserve relays published session events until either side closes.
func (o *Observer) ServeObserve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	events, cleanup, err := o.subscriber.Subscribe(ctx, memory.SessionChannel(sessionID))
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("subscribing to session failed")
		_ = conn.Close(websocket.StatusInternalError, "Subscription failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
