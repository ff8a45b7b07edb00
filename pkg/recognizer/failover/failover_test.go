package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/sonoscribe/pkg/recognizer/mock"
)

func TestPrimaryPreferred(t *testing.T) {
	primary := &mock.Recognizer{Segments: []string{"from primary"}}
	standby := &mock.Recognizer{Segments: []string{"from standby"}}

	c := New()
	c.Add("primary", primary)
	c.Add("standby", standby)

	got, err := c.Transcribe(context.Background(), []float32{0.5})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got[0] != "from primary" {
		t.Errorf("segments = %v, want from primary", got)
	}
	if standby.CallCount() != 0 {
		t.Errorf("standby calls = %d, want 0", standby.CallCount())
	}
}

func TestFailoverToStandby(t *testing.T) {
	primary := &mock.Recognizer{Err: errors.New("native crash")}
	standby := &mock.Recognizer{Segments: []string{"rescued"}}

	c := New()
	c.Add("primary", primary)
	c.Add("standby", standby)

	got, err := c.Transcribe(context.Background(), []float32{0.5})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got[0] != "rescued" {
		t.Errorf("segments = %v, want rescued", got)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.CallCount())
	}
}

func TestAllEnginesFail(t *testing.T) {
	c := New()
	c.Add("a", &mock.Recognizer{Err: errors.New("a down")})
	c.Add("b", &mock.Recognizer{Err: errors.New("b down")})

	_, err := c.Transcribe(context.Background(), nil)
	if !errors.Is(err, ErrAllEngines) {
		t.Fatalf("err = %v, want ErrAllEngines", err)
	}
}

func TestBreakerTripsAndSkips(t *testing.T) {
	primary := &mock.Recognizer{Err: errors.New("down")}
	standby := &mock.Recognizer{Segments: []string{"ok"}}

	c := New(WithMaxFailures(2), WithResetTimeout(time.Hour))
	c.Add("primary", primary)
	c.Add("standby", standby)

	for i := 0; i < 4; i++ {
		if _, err := c.Transcribe(context.Background(), nil); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}

	// The primary stops being called once its breaker trips.
	if n := primary.CallCount(); n != 2 {
		t.Errorf("primary calls = %d, want 2", n)
	}
	if n := standby.CallCount(); n != 4 {
		t.Errorf("standby calls = %d, want 4", n)
	}
}

func TestBreakerProbeRecovers(t *testing.T) {
	primary := &mock.Recognizer{Err: errors.New("down")}
	standby := &mock.Recognizer{Segments: []string{"ok"}}

	c := New(WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	c.Add("primary", primary)
	c.Add("standby", standby)

	// Trip the primary's breaker.
	if _, err := c.Transcribe(context.Background(), nil); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	// After the reset timeout the primary gets a probe; it has recovered.
	primary.Err = nil
	primary.Segments = []string{"recovered"}
	time.Sleep(20 * time.Millisecond)

	got, err := c.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got[0] != "recovered" {
		t.Errorf("segments = %v, want recovered", got)
	}
}

func TestNoEngines(t *testing.T) {
	if _, err := New().Transcribe(context.Background(), nil); err == nil {
		t.Fatal("expected error from empty chain")
	}
}

func TestContextCancellationStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &mock.Recognizer{Err: context.Canceled}
	standby := &mock.Recognizer{Segments: []string{"never"}}

	c := New()
	c.Add("primary", primary)
	c.Add("standby", standby)

	cancel()
	if _, err := c.Transcribe(ctx, nil); err == nil {
		t.Fatal("expected error after cancellation")
	}
	if standby.CallCount() != 0 {
		t.Errorf("standby calls = %d, want 0 after cancellation", standby.CallCount())
	}
}
