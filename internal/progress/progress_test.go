package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestReporter_Advance(t *testing.T) {
	var got []Snapshot
	r := NewReporter(6, func(s Snapshot) { got = append(got, s) })

	base := time.Unix(0, 0)
	clock := base
	r.start = base
	r.now = func() time.Time { return clock }

	clock = base.Add(4 * time.Second)
	s := r.Advance("batch 1/3", 2)
	if s.Completed != 2 || s.Total != 6 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Percent < 33.3 || s.Percent > 33.4 {
		t.Errorf("Percent = %v, want ~33.3", s.Percent)
	}
	if s.ETA != 8*time.Second {
		t.Errorf("ETA = %v, want 8s", s.ETA)
	}

	clock = base.Add(8 * time.Second)
	r.Advance("batch 2/3", 2)
	clock = base.Add(12 * time.Second)
	s = r.Advance("batch 3/3", 2)
	if !s.Done() || s.Percent != 100 || s.ETA != 0 {
		t.Errorf("final snapshot = %+v", s)
	}

	if len(got) != 3 {
		t.Fatalf("callback called %d times, want 3", len(got))
	}
	if got[1].Message != "batch 2/3" {
		t.Errorf("Message = %q", got[1].Message)
	}
}

func TestReporter_Clamps(t *testing.T) {
	r := NewReporter(3, nil)
	r.Advance("", 5)
	r.Advance("", -2)
	if s := r.Snapshot(); s.Completed != 3 {
		t.Errorf("Completed = %d, want 3", s.Completed)
	}
}

func TestReporter_ConcurrentMonotonic(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	r := NewReporter(100, func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Completed)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Advance("tick", 2)
		}()
	}
	wg.Wait()

	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress went backwards: %d then %d", seen[i-1], seen[i])
		}
	}
	if seen[len(seen)-1] != 100 {
		t.Errorf("final = %d, want 100", seen[len(seen)-1])
	}
}

func TestFunc(t *testing.T) {
	var msg string
	var done, total int
	cb := Func(func(m string, c, tot int) { msg, done, total = m, c, tot })
	NewReporter(4, cb).Advance("pages 1-2", 2)
	if msg != "pages 1-2" || done != 2 || total != 4 {
		t.Errorf("got (%q, %d, %d)", msg, done, total)
	}
	if Func(nil) != nil {
		t.Error("Func(nil) should be nil")
	}
}

func TestWriterCallback(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(4, Multi(nil, WriterCallback(&buf))).Advance("batch 1/2", 2)
	if !strings.Contains(buf.String(), "Progress: 50.0% (2/4) - batch 1/2") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLogCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	NewReporter(4, LogCallback(logger)).Advance("batch 1/2", 2)
	for _, want := range []string{"msg=progress", "completed=2", "total=4", "percent=50.0"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log %q missing %q", buf.String(), want)
		}
	}
}
