package ws_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vona/internal/api/ws"
)

// fakeSubscriber hands out one prepared event channel and records which
// pub/sub channel was requested.
type fakeSubscriber struct {
	events  chan []byte
	channel string
	err     error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channel string) (<-chan []byte, func(), error) {
	f.channel = channel
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.events, func() {}, nil
}

func newObserveServer(t *testing.T, sub ws.Subscriber) *httptest.Server {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/ws/observe/{sessionID}", ws.NewObserver(sub).ServeObserve)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeObserve(t *testing.T) {
	t.Parallel()

	t.Run("relays_published_events_in_order", func(t *testing.T) {
		t.Parallel()

		sub := &fakeSubscriber{events: make(chan []byte, 4)}
		srv := newObserveServer(t, sub)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "")+"/ws/observe/sess-42", nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		sub.events <- []byte(`{"type":"transcript","text":"hello","role":"user","final":true}`)
		sub.events <- []byte(`{"type":"response_complete","stop_reason":"end_turn"}`)

		first := readMessage(t, ctx, conn)
		assert.Equal(t, "transcript", first["type"])
		assert.Equal(t, "hello", first["text"])

		second := readMessage(t, ctx, conn)
		assert.Equal(t, "response_complete", second["type"])

		// The observer must watch this session's channel, not another's.
		assert.Equal(t, "session:sess-42", sub.channel)
	})

	t.Run("closed_feed_ends_with_normal_closure", func(t *testing.T) {
		t.Parallel()

		sub := &fakeSubscriber{events: make(chan []byte)}
		srv := newObserveServer(t, sub)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "")+"/ws/observe/sess-42", nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		close(sub.events)

		_, _, err = conn.Read(ctx)
		require.Error(t, err)
		assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	})

	t.Run("subscription_failure_closes_with_reason", func(t *testing.T) {
		t.Parallel()

		sub := &fakeSubscriber{err: errors.New("redis unavailable")}
		srv := newObserveServer(t, sub)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "")+"/ws/observe/sess-42", nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		_, _, err = conn.Read(ctx)
		require.Error(t, err)

		var closeErr websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.StatusInternalError, closeErr.Code)
		assert.Equal(t, "Subscription failed", closeErr.Reason)
	})
}
