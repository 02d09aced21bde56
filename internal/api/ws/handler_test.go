package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vona/internal/api/ws"
	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/bidi/backends"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/session"
	"github.com/gosuda/vona/internal/tools"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newVoiceServer(t *testing.T, authSvc *auth.Service, sessions *session.Manager) *httptest.Server {
	t.Helper()

	model, err := backends.NewLoopback(bidi.BackendOptions{})
	require.NoError(t, err)

	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculator())

	cfg := bidi.ModelConfig{
		ModelID:          "vona-speech-1",
		SystemPrompt:     "You are a test assistant.",
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
	}

	handler := ws.NewHandler(authSvc, sessions, model, reg, cfg, nil)
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeVoice))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	u := strings.Replace(srv.URL, "http://", "ws://", 1)
	if query != "" {
		u += "?" + query
	}
	return u
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServeVoiceAuth(t *testing.T) {
	t.Parallel()

	authSvc := auth.NewService(nil, testSecret, time.Hour)

	t.Run("missing_token_accepts_then_closes_with_reason", func(t *testing.T) {
		t.Parallel()

		srv := newVoiceServer(t, authSvc, session.NewManager(nil))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, ""), nil)
		require.NoError(t, err, "handshake must succeed before the close")
		defer conn.CloseNow()

		_, _, err = conn.Read(ctx)
		require.Error(t, err)

		var closeErr websocket.CloseError
		require.True(t, errors.As(err, &closeErr))
		assert.Equal(t, websocket.StatusPolicyViolation, closeErr.Code)
		assert.Equal(t, "Authentication required", closeErr.Reason)
	})

	t.Run("invalid_token_closes_with_reason", func(t *testing.T) {
		t.Parallel()

		srv := newVoiceServer(t, authSvc, session.NewManager(nil))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "token=garbage"), nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		_, _, err = conn.Read(ctx)
		require.Error(t, err)

		var closeErr websocket.CloseError
		require.True(t, errors.As(err, &closeErr))
		assert.Equal(t, websocket.StatusPolicyViolation, closeErr.Code)
		assert.Equal(t, "Invalid token", closeErr.Reason)
	})

	t.Run("valid_token_runs_conversation", func(t *testing.T) {
		t.Parallel()

		srv := newVoiceServer(t, authSvc, session.NewManager(nil))

		token, err := auth.IssueToken(testSecret, "alice@example.com", "Alice", time.Hour)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "token="+token), nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		msg := readMessage(t, ctx, conn)
		assert.Equal(t, "connection_start", msg["type"])
	})
}

func TestServeVoiceConversation(t *testing.T) {
	t.Parallel()

	t.Run("text_turn_round_trip", func(t *testing.T) {
		t.Parallel()

		srv := newVoiceServer(t, nil, session.NewManager(nil))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, ""), nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		msg := readMessage(t, ctx, conn)
		require.Equal(t, "connection_start", msg["type"])

		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"text":"Hello, world"}`)))

		require.Equal(t, "response_start", readMessage(t, ctx, conn)["type"])

		userTurn := readMessage(t, ctx, conn)
		assert.Equal(t, "transcript", userTurn["type"])
		assert.Equal(t, "user", userTurn["role"])
		assert.Equal(t, "Hello, world", userTurn["text"])

		reply := readMessage(t, ctx, conn)
		assert.Equal(t, "transcript", reply["type"])
		assert.Equal(t, "assistant", reply["role"])
		assert.Equal(t, "Hello, world", reply["text"])

		complete := readMessage(t, ctx, conn)
		assert.Equal(t, "response_complete", complete["type"])
		assert.Equal(t, "end_turn", complete["stop_reason"])
	})

	t.Run("calculator_tool_round_trip", func(t *testing.T) {
		t.Parallel()

		srv := newVoiceServer(t, nil, session.NewManager(nil))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, ""), nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		require.Equal(t, "connection_start", readMessage(t, ctx, conn)["type"])

		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"text":"calculate 6 * 7"}`)))

		require.Equal(t, "response_start", readMessage(t, ctx, conn)["type"])
		require.Equal(t, "transcript", readMessage(t, ctx, conn)["type"]) // user echo

		toolUse := readMessage(t, ctx, conn)
		require.Equal(t, "tool_use", toolUse["type"])
		assert.Equal(t, "calculator", toolUse["tool"])

		result := readMessage(t, ctx, conn)
		require.Equal(t, "transcript", result["type"])
		assert.Equal(t, "42", result["text"])

		complete := readMessage(t, ctx, conn)
		assert.Equal(t, "response_complete", complete["type"])
		assert.Equal(t, "tool_result", complete["stop_reason"])
	})

	t.Run("session_lifecycle_recorded", func(t *testing.T) {
		t.Parallel()

		store := &mockSessionStore{}
		sessions := session.NewManager(store)
		srv := newVoiceServer(t, nil, sessions)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, _, err := websocket.Dial(ctx, wsURL(srv, "session_id=sess-42"), nil)
		require.NoError(t, err)

		require.Equal(t, "connection_start", readMessage(t, ctx, conn)["type"])
		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

		require.Eventually(t, func() bool {
			return len(store.eventsOfType(memory.EventSessionEnd)) == 1
		}, 3*time.Second, 20*time.Millisecond, "session end should be recorded after disconnect")

		starts := store.eventsOfType(memory.EventSessionStart)
		require.Len(t, starts, 1)
		assert.Equal(t, "sess-42", starts[0].SessionID)
		assert.Equal(t, "anonymous", starts[0].ActorID)
	})
}
