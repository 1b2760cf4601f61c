package pulse

import (
	"sync"
	"testing"
	"time"
)

func TestRecordEdge_Debounce(t *testing.T) {
	tests := []struct {
		name     string
		debounce time.Duration
		gap      time.Duration
		want     bool
	}{
		{"wind bounce", WindDebounce, 5 * time.Millisecond, false},
		{"wind just below window", WindDebounce, WindDebounce - time.Nanosecond, false},
		{"wind exactly window", WindDebounce, WindDebounce, true},
		{"wind well apart", WindDebounce, 100 * time.Millisecond, true},
		{"rain bounce", RainDebounce, 150 * time.Millisecond, false},
		{"rain exactly window", RainDebounce, RainDebounce, true},
		{"rain well apart", RainDebounce, time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := time.Now()
			c := NewCounter("test", tt.debounce, base)

			if !c.RecordEdge(base.Add(time.Millisecond)) {
				t.Fatal("first edge must always be accepted")
			}
			if got := c.RecordEdge(base.Add(time.Millisecond + tt.gap)); got != tt.want {
				t.Errorf("second edge accepted = %v, want %v", got, tt.want)
			}

			wantCount := uint64(1)
			if tt.want {
				wantCount = 2
			}
			if got, _ := c.Drain(base.Add(time.Second)); got != wantCount {
				t.Errorf("count = %d, want %d", got, wantCount)
			}
		})
	}
}

func TestRecordEdge_RejectedEdgeDoesNotMoveWindow(t *testing.T) {
	base := time.Now()
	c := NewCounter("wind", WindDebounce, base)

	c.RecordEdge(base)
	c.RecordEdge(base.Add(8 * time.Millisecond)) // bounce
	if !c.RecordEdge(base.Add(12 * time.Millisecond)) {
		t.Fatal("edge 12ms after the last accepted edge should count")
	}
	if got, _ := c.Drain(base.Add(time.Second)); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestDrain(t *testing.T) {
	base := time.Now()
	c := NewCounter("wind", WindDebounce, base)

	for i := 0; i < 10; i++ {
		c.RecordEdge(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	n, interval := c.Drain(base.Add(8 * time.Second))
	if n != 10 {
		t.Errorf("drain count = %d, want 10", n)
	}
	if interval != 8*time.Second {
		t.Errorf("interval = %v, want 8s", interval)
	}

	n, interval = c.Drain(base.Add(8 * time.Second))
	if n != 0 {
		t.Errorf("second drain count = %d, want 0", n)
	}
	if interval != 0 {
		t.Errorf("second drain interval = %v, want 0", interval)
	}
}

func TestReset(t *testing.T) {
	base := time.Now()
	c := NewCounter("rain", RainDebounce, base)
	c.RecordEdge(base)
	c.Reset(base.Add(time.Minute))

	n, interval := c.Drain(base.Add(time.Minute + 8*time.Second))
	if n != 0 {
		t.Errorf("count after reset = %d, want 0", n)
	}
	if interval != 8*time.Second {
		t.Errorf("interval after reset = %v, want 8s", interval)
	}
}

// Concurrent edges and drains must account for every accepted edge once.
func TestConcurrentRecordAndDrain(t *testing.T) {
	base := time.Now()
	c := NewCounter("wind", time.Nanosecond, base)

	const edges = 20000
	var accepted uint64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= edges; i++ {
			if c.RecordEdge(base.Add(time.Duration(i) * time.Microsecond)) {
				accepted++
			}
		}
	}()

	var drained uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for i := 0; ; i++ {
		select {
		case <-done:
			break loop
		default:
			n, _ := c.Drain(base.Add(time.Duration(i) * time.Millisecond))
			drained += n
		}
	}
	n, _ := c.Drain(base.Add(time.Hour))
	drained += n

	if drained != accepted {
		t.Fatalf("drained %d edges, accepted %d", drained, accepted)
	}
	if accepted != edges {
		t.Fatalf("accepted %d edges, want %d", accepted, edges)
	}
}
