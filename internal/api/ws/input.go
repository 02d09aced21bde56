package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/session"
)

// Input pulls the next logical turn from one duplex connection and
// normalizes it into a bidi.InputEvent. Bound to a single connection;
// Read is not safe for concurrent calls.
type Input struct {
	transport  Transport
	session    *session.Session // nil when memory is disabled
	sampleRate int              // default when a chunk omits sample_rate

	stopped atomic.Bool
}

// NewInput creates an input adapter over a transport. defaultSampleRate is
// used for audio chunks that carry no sample_rate field.
func NewInput(transport Transport, sess *session.Session, defaultSampleRate int) *Input {
	if defaultSampleRate == 0 {
		defaultSampleRate = bidi.DefaultSampleRate
	}
	return &Input{
		transport:  transport,
		session:    sess,
		sampleRate: defaultSampleRate,
	}
}

// Start satisfies bidi.Source. The adapter holds no per-agent state.
func (in *Input) Start(_ *bidi.Agent) {}

// Stop marks the adapter terminal. Idempotent; an in-flight Read is not
// interrupted, but every subsequent Read returns bidi.ErrEndOfStream.
func (in *Input) Stop() {
	in.stopped.Store(true)
}

// inboundMessage is the wire shape clients send. A message carries either an
// audio chunk or a text turn (audio takes precedence when both are present);
// anything else is rendered as text. Pointer fields distinguish an absent
// field from an explicit zero.
type inboundMessage struct {
	Text       *string `json:"text"`
	Audio      *string `json:"audio"`
	Format     string  `json:"format"`
	SampleRate *int    `json:"sample_rate"`
	Channels   *int    `json:"channels"`
}

// Read blocks until the next valid turn arrives. Audio chunks with a format
// outside {pcm, wav} or an undecodable payload are dropped and the read
// loops for the next message. A disconnect returns bidi.ErrEndOfStream;
// any other failure marks the adapter stopped and propagates.
func (in *Input) Read(ctx context.Context) (bidi.InputEvent, error) {
	if in.stopped.Load() {
		return nil, bidi.ErrEndOfStream
	}

	for {
		data, err := in.transport.ReadMessage(ctx)
		if err != nil {
			in.stopped.Store(true)
			if isDisconnect(err) {
				return nil, bidi.ErrEndOfStream
			}
			return nil, fmt.Errorf("ws.Input.Read: %w", err)
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			in.stopped.Store(true)
			return nil, fmt.Errorf("ws.Input.Read: decoding message: %w", err)
		}

		switch {
		case msg.Audio != nil:
			ev, ok := in.decodeAudio(msg)
			if !ok {
				continue
			}
			return ev, nil

		case msg.Text != nil:
			in.recordUserText(ctx, *msg.Text)
			return bidi.TextInput{Text: *msg.Text}, nil

		default:
			// Unknown shape: hand the raw message to the model as text
			// rather than failing the turn.
			text := string(data)
			in.recordUserText(ctx, text)
			return bidi.TextInput{Text: text}, nil
		}
	}
}

// decodeAudio validates and decodes one audio chunk. An absent format means
// pcm; ok is false when the chunk must be discarded.
func (in *Input) decodeAudio(msg inboundMessage) (bidi.AudioInput, bool) {
	format := bidi.AudioFormat(msg.Format)
	if msg.Format == "" {
		format = bidi.FormatPCM
	}
	if !format.Valid() {
		log.Debug().Str("format", msg.Format).Msg("dropping audio chunk with unsupported format")
		return bidi.AudioInput{}, false
	}

	payload, err := base64.StdEncoding.DecodeString(*msg.Audio)
	if err != nil {
		log.Debug().Err(err).Msg("dropping audio chunk with undecodable payload")
		return bidi.AudioInput{}, false
	}

	sampleRate := in.sampleRate
	if msg.SampleRate != nil {
		sampleRate = *msg.SampleRate
		if !bidi.ValidSampleRate(sampleRate) {
			sampleRate = bidi.DefaultSampleRate
		}
	}

	channels := 1
	if msg.Channels != nil {
		channels = *msg.Channels
	}

	return bidi.AudioInput{
		Data:       payload,
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
	}, true
}

func (in *Input) recordUserText(ctx context.Context, text string) {
	if in.session == nil {
		return
	}
	if err := in.session.RecordUserInput(ctx, text, ""); err != nil {
		log.Warn().Err(err).Str("session_id", in.session.ID()).Msg("recording user input failed")
	}
}
