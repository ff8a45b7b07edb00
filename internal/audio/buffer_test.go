package audio

import (
	"bytes"
	"testing"
)

func TestAccumulator_DrainEmpty(t *testing.T) {
	var a Accumulator
	got := a.Drain()
	if len(got) != 0 {
		t.Fatalf("empty drain returned %d bytes, want 0", len(got))
	}
}

func TestAccumulator_PreservesArrivalOrder(t *testing.T) {
	var a Accumulator
	chunks := [][]byte{
		{0x01, 0x02},
		{0x03},
		{0x04, 0x05, 0x06},
	}
	for _, c := range chunks {
		a.Append(c)
	}

	if a.Chunks() != 3 {
		t.Errorf("Chunks() = %d, want 3", a.Chunks())
	}
	if a.Len() != 6 {
		t.Errorf("Len() = %d, want 6", a.Len())
	}

	got := a.Drain()
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	if !bytes.Equal(got, want) {
		t.Errorf("Drain() = %v, want %v", got, want)
	}
}

func TestAccumulator_AcceptsZeroLengthChunks(t *testing.T) {
	var a Accumulator
	a.Append(nil)
	a.Append([]byte{})
	a.Append([]byte{0xff})

	if a.Chunks() != 3 {
		t.Errorf("Chunks() = %d, want 3", a.Chunks())
	}
	got := a.Drain()
	if !bytes.Equal(got, []byte{0xff}) {
		t.Errorf("Drain() = %v, want [0xff]", got)
	}
}

func TestAccumulator_DrainResets(t *testing.T) {
	var a Accumulator
	a.Append([]byte{0x01, 0x02})
	_ = a.Drain()

	if a.Len() != 0 || a.Chunks() != 0 {
		t.Fatalf("after Drain: Len=%d Chunks=%d, want 0/0", a.Len(), a.Chunks())
	}
	if got := a.Drain(); len(got) != 0 {
		t.Errorf("second Drain returned %d bytes, want 0", len(got))
	}

	// The accumulator is reusable after a drain.
	a.Append([]byte{0x07})
	if !bytes.Equal(a.Drain(), []byte{0x07}) {
		t.Error("append after drain did not round-trip")
	}
}
