package server

// Status codes in the kaldi-gstreamer wire protocol that Konele clients
// understand. The legacy server only ever sent StatusSuccess; StatusAborted
// is used here to surface engine failures instead of dropping the
// connection without a word.
const (
	StatusSuccess = 0
	StatusAborted = 2
)

// Response is the single JSON text frame sent back per session.
type Response struct {
	Status  int    `json:"status"`
	Segment int    `json:"segment"`
	Result  Result `json:"result"`
	ID      string `json:"id"`
}

// Result carries the recognition outcome. Final is always true: the
// protocol supports interim results but this server produces none.
type Result struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
	Final      bool         `json:"final"`
}

// Hypothesis is one candidate transcript. The server emits exactly one.
type Hypothesis struct {
	Transcript string `json:"transcript"`
}

// successResponse builds the response for a completed transcription.
func successResponse(id, transcript string) Response {
	return Response{
		Status:  StatusSuccess,
		Segment: 0,
		Result: Result{
			Hypotheses: []Hypothesis{{Transcript: transcript}},
			Final:      true,
		},
		ID: id,
	}
}

// errorResponse builds the response for a failed transcription attempt.
// It carries no hypotheses.
func errorResponse(id string) Response {
	return Response{
		Status:  StatusAborted,
		Segment: 0,
		Result: Result{
			Hypotheses: []Hypothesis{},
			Final:      true,
		},
		ID: id,
	}
}
