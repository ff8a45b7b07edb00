package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sonoscribe/internal/audio"
	"github.com/MrWong99/sonoscribe/internal/observe"
	"github.com/MrWong99/sonoscribe/internal/transcript"
	"github.com/MrWong99/sonoscribe/pkg/recognizer"
)

// sessionState tracks where a session is in its lifecycle.
type sessionState int

const (
	// stateAwaitingAudio accepts binary audio frames and waits for the
	// end-of-stream sentinel.
	stateAwaitingAudio sessionState = iota

	// stateFinalizing runs drain → normalize → transcribe → sanitize →
	// respond. Inbound frames are no longer read.
	stateFinalizing

	// stateClosed is terminal.
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingAudio:
		return "awaiting_audio"
	case stateFinalizing:
		return "finalizing"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// session owns the lifecycle of one websocket connection: it accumulates
// binary audio frames until the end-of-stream sentinel arrives, then runs
// the transcription pipeline and sends exactly one response frame.
//
// All session state is confined to the run goroutine, so no locking is
// needed. The engine and sanitizer are shared across sessions and are safe
// for concurrent use.
type session struct {
	id            string
	conn          *websocket.Conn
	engine        recognizer.Recognizer
	sanitizer     *transcript.Sanitizer
	metrics       *observe.Metrics
	maxAudioBytes int64

	state sessionState
	buf   audio.Accumulator
}

// run drives the session until it closes. It blocks for the lifetime of
// the connection, including the whole engine call during finalization.
func (s *session) run(ctx context.Context) {
	log := observe.Logger(ctx).With("session_id", s.id)
	log.Info("session opened")

	defer func() {
		// last distinguishes a completed session from one the peer
		// abandoned mid-stream.
		last := s.state
		s.state = stateClosed
		// The peer may already be gone; a close failure is not an event.
		_ = s.conn.Close(websocket.StatusNormalClosure, "session complete")
		log.Info("session closed", "last_state", last.String())
	}()

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			// Client went away mid-stream, or the upload exceeded the read
			// limit. Either way there is nothing left to transcribe.
			log.Warn("connection lost before end-of-stream", "err", err, "buffered_bytes", s.buf.Len())
			s.metrics.RecordSession(ctx, "transport_error")
			return
		}

		switch typ {
		case websocket.MessageBinary:
			s.buf.Append(data)
			s.metrics.AudioBytes.Add(ctx, int64(len(data)))
			if s.maxAudioBytes > 0 && int64(s.buf.Len()) > s.maxAudioBytes {
				log.Warn("session exceeded audio limit", "buffered_bytes", s.buf.Len(), "limit", s.maxAudioBytes)
				_ = s.conn.Close(websocket.StatusMessageTooBig, "audio limit exceeded")
				s.metrics.RecordSession(ctx, "transport_error")
				return
			}

		case websocket.MessageText:
			// Any text frame is the end-of-stream sentinel; its content is
			// deliberately not checked, matching what deployed clients send.
			s.finalize(ctx, log)
			return

		default:
			log.Debug("ignoring unexpected frame type", "type", typ.String())
		}
	}
}

// finalize drains the accumulator, runs the engine, sanitizes the result,
// and sends the one response frame for this session.
func (s *session) finalize(ctx context.Context, log *slog.Logger) {
	s.state = stateFinalizing

	ctx, span := observe.StartSpan(ctx, "session.finalize",
		trace.WithAttributes(attribute.String("session_id", s.id)),
	)
	defer span.End()

	chunks := s.buf.Chunks()
	raw := s.buf.Drain()
	log.Info("end-of-stream received", "chunks", chunks, "audio_bytes", len(raw))

	samples := audio.PCMToFloat32(raw)

	start := time.Now()
	segments, err := s.engine.Transcribe(ctx, samples)
	s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		log.Error("transcription failed", "err", err)
		s.metrics.RecordEngineError(ctx)
		// Best effort: tell the client the attempt is over before closing.
		_ = s.send(ctx, errorResponse(s.id))
		s.metrics.RecordSession(ctx, "engine_error")
		return
	}

	text := s.sanitizer.Sanitize(segments)
	log.Info("transcription complete", "segments", len(segments), "transcript_len", len(text))

	if err := s.send(ctx, successResponse(s.id, text)); err != nil {
		log.Warn("failed to send response", "err", err)
		s.metrics.RecordSession(ctx, "transport_error")
		return
	}
	s.metrics.RecordSession(ctx, "ok")
}

// send marshals resp and writes it as one text frame.
func (s *session) send(ctx context.Context, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("server: marshal response: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("server: write response: %w", err)
	}
	return nil
}
