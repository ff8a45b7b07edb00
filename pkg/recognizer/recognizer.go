// Package recognizer defines the interface for batch speech recognition
// engines.
//
// An engine consumes a complete normalised mono float32 signal and returns
// the ordered text segments covering it in one blocking call. There is no
// streaming and no partial output: the caller accumulates a whole
// utterance first, which matches how the websocket protocol delivers
// audio. Engines live for the whole process and are shared by every
// session, so implementations must be safe for concurrent use.
package recognizer

import "context"

// Recognizer is the abstraction over any batch transcription engine.
type Recognizer interface {
	// Transcribe runs recognition over samples, a normalised mono signal in
	// [-1.0, 1.0) at the sample rate agreed at construction time. It blocks
	// for the whole inference, which may take seconds to minutes in
	// proportion to the audio duration; there is no mid-call cancellation
	// once the underlying engine has started.
	//
	// The returned segments are in temporal order and cover the whole
	// input. An engine-internal failure is returned as an error with no
	// partial result.
	Transcribe(ctx context.Context, samples []float32) ([]string, error)
}
