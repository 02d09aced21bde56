package ws_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vona/internal/api/ws"
	"github.com/gosuda/vona/internal/bidi"
)

// fakeTransport serves queued inbound messages and captures outbound writes.
// Once the queue is drained, reads fail with readErr (io.EOF by default,
// which the adapters treat as a client disconnect).
type fakeTransport struct {
	inbound  [][]byte
	outbound [][]byte
	readErr  error
	writeErr error
}

func (t *fakeTransport) ReadMessage(_ context.Context) ([]byte, error) {
	if len(t.inbound) == 0 {
		if t.readErr != nil {
			return nil, t.readErr
		}
		return nil, io.EOF
	}
	msg := t.inbound[0]
	t.inbound = t.inbound[1:]
	return msg, nil
}

func (t *fakeTransport) WriteMessage(_ context.Context, data []byte) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.outbound = append(t.outbound, data)
	return nil
}

func queue(msgs ...string) [][]byte {
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		out[i] = []byte(m)
	}
	return out
}

func TestInputText(t *testing.T) {
	t.Parallel()

	t.Run("returns_text_verbatim", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(`{"text":"Hello, world"}`)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		text, ok := ev.(bidi.TextInput)
		require.True(t, ok)
		assert.Equal(t, "Hello, world", text.Text)
	})

	t.Run("text_wins_over_unrecognized_fields", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(`{"text":"hi","mystery":42}`)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		text, ok := ev.(bidi.TextInput)
		require.True(t, ok)
		assert.Equal(t, "hi", text.Text)
	})

	t.Run("unknown_shape_rendered_as_text", func(t *testing.T) {
		t.Parallel()

		raw := `{"command":"ping","seq":7}`
		transport := &fakeTransport{inbound: queue(raw)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		text, ok := ev.(bidi.TextInput)
		require.True(t, ok)
		assert.Equal(t, raw, text.Text)
	})

	t.Run("invalid_json_is_fatal", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(`{not json`)}
		in := ws.NewInput(transport, nil, 16000)

		_, err := in.Read(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, bidi.ErrEndOfStream)

		// The adapter is terminal after a fatal read.
		_, err = in.Read(context.Background())
		assert.ErrorIs(t, err, bidi.ErrEndOfStream)
	})
}

func audioMessage(t *testing.T, fields map[string]any) string {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(data)
}

func TestInputAudio(t *testing.T) {
	t.Parallel()

	payload := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03, 0x04})

	t.Run("decodes_valid_chunk", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "pcm", "sample_rate": 48000, "channels": 2,
		}))}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio, ok := ev.(bidi.AudioInput)
		require.True(t, ok)
		assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, audio.Data)
		assert.Equal(t, bidi.FormatPCM, audio.Format)
		assert.Equal(t, 48000, audio.SampleRate)
		assert.Equal(t, 2, audio.Channels)
	})

	t.Run("unsupported_format_skipped_to_next_message", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(
			audioMessage(t, map[string]any{"audio": payload, "format": "mp3"}),
			`{"text":"after the bad chunk"}`,
		)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		text, ok := ev.(bidi.TextInput)
		require.True(t, ok)
		assert.Equal(t, "after the bad chunk", text.Text)
	})

	t.Run("missing_format_defaults_to_pcm", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(
			audioMessage(t, map[string]any{"audio": payload}),
		)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio, ok := ev.(bidi.AudioInput)
		require.True(t, ok)
		assert.Equal(t, bidi.FormatPCM, audio.Format)
		assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, audio.Data)
	})

	t.Run("audio_wins_when_text_also_present", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "pcm", "text": "ignored",
		}))}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		_, ok := ev.(bidi.AudioInput)
		assert.True(t, ok)
	})

	t.Run("undecodable_payload_skipped", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(
			`{"audio":"%%%not-base64%%%","format":"pcm"}`,
			`{"text":"recovered"}`,
		)}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bidi.TextInput{Text: "recovered"}, ev)
	})

	t.Run("out_of_set_sample_rate_forced_to_16000", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "pcm", "sample_rate": 44100,
		}))}
		in := ws.NewInput(transport, nil, 24000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio := ev.(bidi.AudioInput)
		assert.Equal(t, 16000, audio.SampleRate)
	})

	t.Run("explicit_zero_sample_rate_forced_to_16000", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "pcm", "sample_rate": 0,
		}))}
		in := ws.NewInput(transport, nil, 24000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio := ev.(bidi.AudioInput)
		assert.Equal(t, 16000, audio.SampleRate)
	})

	t.Run("absent_sample_rate_uses_configured_default", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "wav",
		}))}
		in := ws.NewInput(transport, nil, 24000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio := ev.(bidi.AudioInput)
		assert.Equal(t, bidi.FormatWAV, audio.Format)
		assert.Equal(t, 24000, audio.SampleRate)
	})

	t.Run("absent_channels_defaults_to_one", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(audioMessage(t, map[string]any{
			"audio": payload, "format": "pcm", "sample_rate": 16000,
		}))}
		in := ws.NewInput(transport, nil, 16000)

		ev, err := in.Read(context.Background())
		require.NoError(t, err)

		audio := ev.(bidi.AudioInput)
		assert.Equal(t, 1, audio.Channels)
	})
}

func TestInputLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("disconnect_is_end_of_stream_and_sticky", func(t *testing.T) {
		t.Parallel()

		in := ws.NewInput(&fakeTransport{}, nil, 16000)

		_, err := in.Read(context.Background())
		assert.ErrorIs(t, err, bidi.ErrEndOfStream)

		_, err = in.Read(context.Background())
		assert.ErrorIs(t, err, bidi.ErrEndOfStream)
	})

	t.Run("unexpected_error_propagates", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("transport exploded")
		in := ws.NewInput(&fakeTransport{readErr: boom}, nil, 16000)

		_, err := in.Read(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, bidi.ErrEndOfStream)

		_, err = in.Read(context.Background())
		assert.ErrorIs(t, err, bidi.ErrEndOfStream)
	})

	t.Run("stop_is_idempotent", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{inbound: queue(`{"text":"never read"}`)}
		in := ws.NewInput(transport, nil, 16000)

		in.Stop()
		in.Stop()

		_, err := in.Read(context.Background())
		assert.ErrorIs(t, err, bidi.ErrEndOfStream)
	})
}
