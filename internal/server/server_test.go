package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/sonoscribe/internal/observe"
	"github.com/MrWong99/sonoscribe/internal/transcript"
	"github.com/MrWong99/sonoscribe/pkg/recognizer/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newSpeechServer(t *testing.T, engine *mock.Recognizer, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithMetrics(testMetrics(t))}, opts...)
	ts := httptest.NewServer(New(engine, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dialSpeech(t *testing.T, ctx context.Context, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, ts.URL+SpeechPath+query, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", SpeechPath, err)
	}
	return conn
}

// readTextFrame reads one frame and fails the test unless it is text.
func readTextFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) []byte {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response frame: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("response frame type = %v, want text", typ)
	}
	return data
}

func TestSpeechSessionEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Segments: []string{"test"}}
	ts := newSpeechServer(t, engine)

	conn := dialSpeech(t, ctx, ts, "?user-id=phone-1")
	defer conn.CloseNow()

	// Two samples: silence and the maximum positive amplitude.
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0x00, 0x00, 0xff, 0x7f}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	data := readTextFrame(t, ctx, conn)
	want := `{"status":0,"segment":0,"result":{"hypotheses":[{"transcript":"test"}],"final":true},"id":"phone-1"}`
	if string(data) != want {
		t.Errorf("response = %s, want %s", data, want)
	}

	if n := engine.CallCount(); n != 1 {
		t.Fatalf("engine calls = %d, want 1", n)
	}
	samples := engine.Calls[0]
	if len(samples) != 2 {
		t.Fatalf("engine got %d samples, want 2", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("samples[0] = %v, want 0", samples[0])
	}
	if samples[1] < 0.99 || samples[1] > 1 {
		t.Errorf("samples[1] = %v, want ~1", samples[1])
	}

	// The server closes with a normal status after the single response.
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("post-response read error = %v, want normal closure", err)
	}
}

func TestSpeechSessionAccumulatesAllFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Segments: []string{"long utterance"}}
	ts := newSpeechServer(t, engine)

	conn := dialSpeech(t, ctx, ts, "")
	defer conn.CloseNow()

	const frames, frameBytes = 5, 320
	for i := 0; i < frames; i++ {
		chunk := make([]byte, frameBytes)
		for j := range chunk {
			chunk[j] = byte(i) // distinct content per frame
		}
		if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	readTextFrame(t, ctx, conn)

	if n := engine.CallCount(); n != 1 {
		t.Fatalf("engine calls = %d, want exactly 1", n)
	}
	if got, want := len(engine.Calls[0]), frames*frameBytes/2; got != want {
		t.Errorf("engine got %d samples, want %d", got, want)
	}
}

func TestSpeechSessionSentinelContentIgnored(t *testing.T) {
	for _, sentinel := range []string{"EOS", "", "stop", `{"eof":1}`} {
		t.Run("sentinel_"+sentinel, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			engine := &mock.Recognizer{Segments: []string{"hi"}}
			ts := newSpeechServer(t, engine)

			conn := dialSpeech(t, ctx, ts, "")
			defer conn.CloseNow()

			if err := conn.Write(ctx, websocket.MessageText, []byte(sentinel)); err != nil {
				t.Fatalf("write sentinel: %v", err)
			}

			var resp Response
			if err := json.Unmarshal(readTextFrame(t, ctx, conn), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Status != StatusSuccess {
				t.Errorf("status = %d, want %d", resp.Status, StatusSuccess)
			}
		})
	}
}

func TestSpeechSessionEngineError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Err: errors.New("model exploded")}
	ts := newSpeechServer(t, engine)

	conn := dialSpeech(t, ctx, ts, "?user-id=phone-2")
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(readTextFrame(t, ctx, conn), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != StatusAborted {
		t.Errorf("status = %d, want %d", resp.Status, StatusAborted)
	}
	if len(resp.Result.Hypotheses) != 0 {
		t.Errorf("hypotheses = %v, want none", resp.Result.Hypotheses)
	}
	if resp.ID != "phone-2" {
		t.Errorf("id = %q, want %q", resp.ID, "phone-2")
	}
}

func TestSpeechSessionEmptyAudio(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{}
	ts := newSpeechServer(t, engine)

	conn := dialSpeech(t, ctx, ts, "")
	defer conn.CloseNow()

	// Sentinel with no audio at all: the engine still runs, on zero samples.
	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(readTextFrame(t, ctx, conn), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != StatusSuccess {
		t.Errorf("status = %d, want %d", resp.Status, StatusSuccess)
	}
	if got := resp.Result.Hypotheses[0].Transcript; got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
	if n := engine.CallCount(); n != 1 {
		t.Fatalf("engine calls = %d, want 1", n)
	}
	if len(engine.Calls[0]) != 0 {
		t.Errorf("engine got %d samples, want 0", len(engine.Calls[0]))
	}
}

func TestSpeechSessionIsolation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Segments: []string{"ok"}}
	ts := newSpeechServer(t, engine)

	for i, payload := range [][]byte{{0x01, 0x00}, {0x02, 0x00, 0x03, 0x00}} {
		conn := dialSpeech(t, ctx, ts, "")
		if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
			t.Fatalf("session %d write: %v", i, err)
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
			t.Fatalf("session %d sentinel: %v", i, err)
		}
		readTextFrame(t, ctx, conn)
		conn.CloseNow()
	}

	if n := engine.CallCount(); n != 2 {
		t.Fatalf("engine calls = %d, want 2", n)
	}
	// The second session must only see its own audio, not leftovers from
	// the first.
	if got := len(engine.Calls[0]); got != 1 {
		t.Errorf("first session samples = %d, want 1", got)
	}
	if got := len(engine.Calls[1]); got != 2 {
		t.Errorf("second session samples = %d, want 2", got)
	}
}

func TestSpeechSessionAppliesSanitizer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	san, err := transcript.NewSanitizer([]transcript.Rule{{Pattern: "Conner", Replacement: "Conor"}})
	if err != nil {
		t.Fatalf("NewSanitizer: %v", err)
	}
	engine := &mock.Recognizer{Segments: []string{"[soft music]", "hello Conner"}}
	ts := newSpeechServer(t, engine, WithSanitizer(san))

	conn := dialSpeech(t, ctx, ts, "")
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(readTextFrame(t, ctx, conn), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got, want := resp.Result.Hypotheses[0].Transcript, "hello Conor"; got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}

func TestSpeechSessionGeneratedID(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Segments: []string{"x"}}
	ts := newSpeechServer(t, engine)

	conn := dialSpeech(t, ctx, ts, "")
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageText, []byte("EOS")); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(readTextFrame(t, ctx, conn), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, err := uuid.Parse(resp.ID); err != nil {
		t.Errorf("id %q is not a UUID: %v", resp.ID, err)
	}
}

func TestSpeechSessionAudioLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := &mock.Recognizer{Segments: []string{"never"}}
	ts := newSpeechServer(t, engine, WithMaxAudioBytes(8))

	conn := dialSpeech(t, ctx, ts, "")
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageBinary, make([]byte, 16)); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusMessageTooBig {
		t.Fatalf("read error = %v, want message-too-big closure", err)
	}
	if n := engine.CallCount(); n != 0 {
		t.Errorf("engine calls = %d, want 0", n)
	}
}

func TestHandlerRejectsNonGET(t *testing.T) {
	engine := &mock.Recognizer{}
	ts := newSpeechServer(t, engine)

	resp, err := ts.Client().Post(ts.URL+SpeechPath, "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 405 {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
