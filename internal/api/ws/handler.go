package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vona/internal/auth"
	"github.com/gosuda/vona/internal/bidi"
	"github.com/gosuda/vona/internal/memory"
	"github.com/gosuda/vona/internal/session"
)

// anonymousActor owns sessions opened while authentication is disabled.
const anonymousActor = "anonymous"

// Handler serves the duplex voice endpoint: it authenticates the caller,
// resolves a session, connects the speech model, and runs the agent loop
// over the connection.
type Handler struct {
	auth      *auth.Service // nil when authentication is disabled
	sessions  *session.Manager
	model     bidi.Model
	tools     bidi.ToolRunner
	modelCfg  bidi.ModelConfig
	publisher Publisher // nil when no observer fan-out is configured
}

func NewHandler(authSvc *auth.Service, sessions *session.Manager, model bidi.Model, tools bidi.ToolRunner, modelCfg bidi.ModelConfig, publisher Publisher) *Handler {
	return &Handler{
		auth:      authSvc,
		sessions:  sessions,
		model:     model,
		tools:     tools,
		modelCfg:  modelCfg,
		publisher: publisher,
	}
}

// ServeVoice upgrades the request and drives one conversation. A missing or
// invalid token does not fail the handshake; the connection is accepted and
// then closed with an explicit reason so the client sees why.
func (h *Handler) ServeVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	actorID := anonymousActor

	if h.auth != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			_ = conn.Close(websocket.StatusPolicyViolation, "Authentication required")
			return
		}
		identity, err := h.auth.VerifyToken(token)
		if err != nil {
			_ = conn.Close(websocket.StatusPolicyViolation, "Invalid token")
			return
		}
		actorID = identity.ActorID()
	}

	var sess *session.Session
	if h.sessions.Enabled() {
		sess, err = h.sessions.Resolve(ctx, actorID, r.URL.Query().Get("session_id"))
		if err != nil {
			log.Error().Err(err).Str("actor_id", actorID).Msg("session resolution failed")
			_ = conn.Close(websocket.StatusInternalError, "Session initialization failed")
			return
		}
	}

	cfg := h.modelCfg
	if sess != nil && sess.Context() != "" {
		cfg.SystemPrompt += "\n\n" + sess.Context()
	}

	modelSession, err := h.model.Connect(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("model connect failed")
		_ = conn.Close(websocket.StatusInternalError, "Model unavailable")
		return
	}

	transport := newConnTransport(conn)
	channel := ""
	if sess != nil {
		channel = memory.SessionChannel(sess.ID())
	}
	input := NewInput(transport, sess, cfg.InputSampleRate)
	output := NewOutput(transport, sess, h.publisher, channel)

	agent := bidi.New(modelSession, h.tools)
	if err := agent.Run(ctx, input, output); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("agent loop ended with error")
	}

	if sess != nil {
		// The request context is gone once the client disconnects, but the
		// session end still needs to be persisted.
		finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sess.Finalize(finCtx); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID()).Msg("finalizing session failed")
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
}
