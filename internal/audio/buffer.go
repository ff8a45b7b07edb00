// Package audio provides the per-session PCM accumulation buffer and the
// signal conversion applied before transcription.
//
// Audio arrives as raw little-endian signed 16-bit PCM, interleaved mono at
// a fixed deployment-configured sample rate. The format is an assumption,
// not negotiated in-band: chunks are never inspected or validated, and
// mismatched input produces garbage transcription rather than an error.
package audio

// Accumulator collects raw audio chunks for one session in arrival order.
//
// An Accumulator is owned and mutated exclusively by its session's
// frame-handling goroutine, so no locking is needed or performed.
type Accumulator struct {
	chunks [][]byte
	size   int
}

// Append adds chunk to the accumulator. Chunks are kept in arrival order
// and never inspected; zero-length chunks are accepted. The chunk is
// retained by reference and must not be mutated after the call.
func (a *Accumulator) Append(chunk []byte) {
	a.chunks = append(a.chunks, chunk)
	a.size += len(chunk)
}

// Len returns the total number of buffered bytes.
func (a *Accumulator) Len() int { return a.size }

// Chunks returns the number of buffered chunks.
func (a *Accumulator) Chunks() int { return len(a.chunks) }

// Drain concatenates all buffered chunks into one contiguous slice in
// arrival order and resets the accumulator. Draining an empty accumulator
// returns an empty slice.
func (a *Accumulator) Drain() []byte {
	buf := make([]byte, 0, a.size)
	for _, c := range a.chunks {
		buf = append(buf, c...)
	}
	a.chunks = nil
	a.size = 0
	return buf
}
