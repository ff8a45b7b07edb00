// Package server implements the Konele-compatible websocket speech endpoint.
//
// A client opens GET /client/ws/speech, streams raw signed 16-bit
// little-endian mono PCM as binary frames, then sends any text frame as the
// end-of-stream sentinel. The server transcribes the accumulated audio in
// one batch and replies with exactly one JSON text frame before closing the
// connection.
package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/sonoscribe/internal/config"
	"github.com/MrWong99/sonoscribe/internal/observe"
	"github.com/MrWong99/sonoscribe/internal/transcript"
	"github.com/MrWong99/sonoscribe/pkg/recognizer"
)

// SpeechPath is the websocket endpoint the mobile clients are hardcoded to.
const SpeechPath = "/client/ws/speech"

// Server accepts websocket speech sessions and runs them against a shared
// recognition engine. It is safe for concurrent use; each accepted
// connection gets its own session goroutine.
type Server struct {
	engine        recognizer.Recognizer
	sanitizer     *transcript.Sanitizer
	metrics       *observe.Metrics
	maxAudioBytes int64
}

// Option configures a [Server].
type Option func(*Server)

// WithSanitizer sets the transcript sanitizer applied to engine output.
func WithSanitizer(s *transcript.Sanitizer) Option {
	return func(srv *Server) {
		srv.sanitizer = s
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(srv *Server) {
		srv.metrics = m
	}
}

// WithMaxAudioBytes caps the total PCM bytes a single session may stream.
// Zero or negative disables the cap.
func WithMaxAudioBytes(n int64) Option {
	return func(srv *Server) {
		srv.maxAudioBytes = n
	}
}

// New creates a Server around the given engine.
func New(engine recognizer.Recognizer, opts ...Option) *Server {
	srv := &Server{
		engine:        engine,
		maxAudioBytes: config.DefaultMaxAudioBytes,
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.sanitizer == nil {
		srv.sanitizer = transcript.MustSanitizer(nil)
	}
	if srv.metrics == nil {
		srv.metrics = observe.DefaultMetrics()
	}
	return srv
}

// Handler returns the HTTP handler serving the speech endpoint.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+SpeechPath, srv.handleSpeech)
	return mux
}

func (srv *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	// Konele clients echo their own id via the user-id query parameter.
	// Sessions without one get a fresh UUID so log lines and the response
	// id remain correlatable.
	id := r.URL.Query().Get("user-id")
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The mobile apps connect from arbitrary origins (ws:// from a
		// native app has no browser origin to enforce).
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn("websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	// Individual frames from real clients are a few KiB of PCM, but leave
	// generous headroom; the session enforces the total-audio cap itself.
	conn.SetReadLimit(1 << 20)

	srv.metrics.ActiveSessions.Add(ctx, 1)
	defer srv.metrics.ActiveSessions.Add(ctx, -1)

	sess := &session{
		id:            id,
		conn:          conn,
		engine:        srv.engine,
		sanitizer:     srv.sanitizer,
		metrics:       srv.metrics,
		maxAudioBytes: srv.maxAudioBytes,
	}
	sess.run(ctx)
}
