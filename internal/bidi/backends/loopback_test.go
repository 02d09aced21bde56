package backends_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/bidi/backends"
)

func connectLoopback(t *testing.T) bidi.ModelSession {
	t.Helper()

	model, err := backends.NewLoopback(bidi.BackendOptions{})
	require.NoError(t, err)

	sess, err := model.Connect(context.Background(), bidi.ModelConfig{ModelID: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func nextEvent(t *testing.T, sess bidi.ModelSession) bidi.OutputEvent {
	t.Helper()
	select {
	case ev := <-sess.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for model event")
		return nil
	}
}

func TestLoopbackTextTurn(t *testing.T) {
	t.Parallel()

	sess := connectLoopback(t)
	assert.IsType(t, bidi.ConnectionStart{}, nextEvent(t, sess))

	require.NoError(t, sess.Send(context.Background(), bidi.TextInput{Text: "Hello, world"}))

	assert.IsType(t, bidi.ResponseStart{}, nextEvent(t, sess))

	user := nextEvent(t, sess).(bidi.Transcript)
	assert.Equal(t, bidi.RoleUser, user.Role)
	assert.Equal(t, "Hello, world", user.Text)
	assert.True(t, user.Final)

	reply := nextEvent(t, sess).(bidi.Transcript)
	assert.Equal(t, bidi.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello, world", reply.Text)

	complete := nextEvent(t, sess).(bidi.ResponseComplete)
	assert.Equal(t, "end_turn", complete.StopReason)
}

func TestLoopbackToolTurn(t *testing.T) {
	t.Parallel()

	sess := connectLoopback(t)
	nextEvent(t, sess) // connection start

	require.NoError(t, sess.Send(context.Background(), bidi.TextInput{Text: "calculate 2 + 2"}))

	nextEvent(t, sess) // response start
	nextEvent(t, sess) // user transcript

	toolUse := nextEvent(t, sess).(bidi.ToolUse)
	assert.Equal(t, "calculator", toolUse.Tool)
	assert.JSONEq(t, `{"expression":"2 + 2"}`, string(toolUse.Input))

	require.NoError(t, sess.SendToolResult(context.Background(), toolUse.CallID, "4"))

	result := nextEvent(t, sess).(bidi.Transcript)
	assert.Equal(t, "4", result.Text)

	complete := nextEvent(t, sess).(bidi.ResponseComplete)
	assert.Equal(t, "tool_result", complete.StopReason)
}

func TestLoopbackAudioAccepted(t *testing.T) {
	t.Parallel()

	sess := connectLoopback(t)
	nextEvent(t, sess)

	err := sess.Send(context.Background(), bidi.AudioInput{
		Data: []byte{1, 2, 3}, Format: bidi.FormatPCM, SampleRate: 16000, Channels: 1,
	})
	assert.NoError(t, err)
}

func TestLoopbackClose(t *testing.T) {
	t.Parallel()

	sess := connectLoopback(t)
	nextEvent(t, sess)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close(), "close is idempotent")

	assert.IsType(t, bidi.ConnectionClose{}, nextEvent(t, sess))

	err := sess.Send(context.Background(), bidi.TextInput{Text: "too late"})
	assert.ErrorIs(t, err, backends.ErrSessionClosed)
}
