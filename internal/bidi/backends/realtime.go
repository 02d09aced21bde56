package backends

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/bidi"
)

// ErrNoUpstreamURL is returned when the realtime backend is created without
// an upstream endpoint.
var ErrNoUpstreamURL = errors.New("backends: realtime upstream URL required") //nolint:gochecknoglobals // sentinel error

// NewRealtime creates a model backend that bridges to a managed
// bi-directional speech service speaking a JSON frame protocol over
// WebSocket.
func NewRealtime(opts bidi.BackendOptions) (bidi.Model, error) {
	if opts.URL == "" {
		return nil, ErrNoUpstreamURL
	}
	return &Realtime{url: opts.URL, apiKey: opts.APIKey}, nil
}

// Realtime dials one upstream WebSocket per conversation.
type Realtime struct {
	url    string
	apiKey string
}

// frame is the wire format shared by both directions of the upstream link.
type frame struct {
	Type string `json:"type"`

	// session.update
	Session *sessionConfig `json:"session,omitempty"`

	// input_text / transcript
	Text  string `json:"text,omitempty"`
	Role  string `json:"role,omitempty"`
	Final bool   `json:"final,omitempty"`

	// input_audio / audio
	Audio      string `json:"audio,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	// tool_use / tool_result
	CallID string          `json:"call_id,omitempty"`
	Tool   string          `json:"tool,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`

	// response.complete / error
	StopReason string `json:"stop_reason,omitempty"`
	Message    string `json:"message,omitempty"`
}

type sessionConfig struct {
	Model            string `json:"model"`
	Voice            string `json:"voice,omitempty"`
	SystemPrompt     string `json:"system_prompt,omitempty"`
	InputSampleRate  int    `json:"input_sample_rate"`
	OutputSampleRate int    `json:"output_sample_rate"`
}

func (r *Realtime) Connect(ctx context.Context, cfg bidi.ModelConfig) (bidi.ModelSession, error) {
	opts := &websocket.DialOptions{}
	if r.apiKey != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + r.apiKey}}
	}

	conn, _, err := websocket.Dial(ctx, r.url, opts)
	if err != nil {
		return nil, fmt.Errorf("backends.Realtime.Connect: dial %s: %w", r.url, err)
	}

	s := &realtimeSession{
		conn:   conn,
		events: make(chan bidi.OutputEvent, 64),
		done:   make(chan struct{}),
	}

	// Configure the conversation before any turn flows.
	if err := s.write(ctx, frame{Type: "session.update", Session: &sessionConfig{
		Model:            cfg.ModelID,
		Voice:            cfg.Voice,
		SystemPrompt:     cfg.SystemPrompt,
		InputSampleRate:  cfg.InputSampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
	}}); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("backends.Realtime.Connect: session.update: %w", err)
	}

	go s.readPump()

	return s, nil
}

type realtimeSession struct {
	conn   *websocket.Conn
	events chan bidi.OutputEvent
	done   chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
}

func (s *realtimeSession) Events() <-chan bidi.OutputEvent { return s.events }

func (s *realtimeSession) Send(ctx context.Context, event bidi.InputEvent) error {
	switch ev := event.(type) {
	case bidi.TextInput:
		return s.write(ctx, frame{Type: "input_text", Text: ev.Text})
	case bidi.AudioInput:
		return s.write(ctx, frame{
			Type:       "input_audio",
			Audio:      base64.StdEncoding.EncodeToString(ev.Data),
			Format:     string(ev.Format),
			SampleRate: ev.SampleRate,
			Channels:   ev.Channels,
		})
	default:
		return fmt.Errorf("backends.realtime: unsupported input event %T", event)
	}
}

func (s *realtimeSession) SendToolResult(ctx context.Context, callID, result string) error {
	return s.write(ctx, frame{Type: "tool_result", CallID: callID, Output: result})
}

// Close releases the readPump first, so a pump blocked on a full events
// buffer cannot wedge the close handshake. Idempotent.
func (s *realtimeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return err
}

func (s *realtimeSession) write(ctx context.Context, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("backends.realtime: marshal %s frame: %w", f.Type, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("backends.realtime: write %s frame: %w", f.Type, err)
	}
	return nil
}

// readPump translates upstream frames into output events until the upstream
// connection ends or the session is closed, then closes the events channel.
func (s *realtimeSession) readPump() {
	defer close(s.events)

	ctx := context.Background()
	for {
		_, payload, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				log.Debug().Err(err).Msg("backends: realtime upstream read")
			}
			return
		}

		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			log.Warn().Err(err).Msg("backends: realtime upstream sent malformed frame")
			continue
		}

		ev, ok := s.translate(f)
		if !ok {
			log.Debug().Str("type", f.Type).Msg("backends: unhandled upstream frame")
			continue
		}

		// Send under a done guard: the consumer may stop draining before the
		// upstream stops streaming, and a plain send would block forever.
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}

		if f.Type == "connection.close" {
			return
		}
	}
}

func (s *realtimeSession) translate(f frame) (bidi.OutputEvent, bool) {
	switch f.Type {
	case "connection.start":
		return bidi.ConnectionStart{}, true
	case "connection.close":
		return bidi.ConnectionClose{}, true
	case "response.start":
		return bidi.ResponseStart{}, true
	case "response.complete":
		return bidi.ResponseComplete{StopReason: f.StopReason}, true
	case "transcript":
		return bidi.Transcript{Text: f.Text, Role: bidi.Role(f.Role), Final: f.Final}, true
	case "audio":
		data, err := base64.StdEncoding.DecodeString(f.Audio)
		if err != nil {
			log.Warn().Err(err).Msg("backends: realtime audio frame not base64")
			return nil, false
		}
		return bidi.AudioDelta{
			Data:       data,
			Format:     bidi.AudioFormat(f.Format),
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
		}, true
	case "tool_use":
		return bidi.ToolUse{CallID: f.CallID, Tool: f.Tool, Input: f.Input, Content: string(f.Input)}, true
	case "error":
		return bidi.ErrorEvent{Message: f.Message}, true
	default:
		return nil, false
	}
}
