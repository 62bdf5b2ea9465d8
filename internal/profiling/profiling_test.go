package profiling

import (
	"strings"
	"testing"
	"time"
)

func TestFormatMs(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{4200 * time.Microsecond, "4.2ms"},
		{3 * time.Millisecond, "3ms"},
		{12345 * time.Microsecond, "12.3ms"},
	}
	for _, tt := range tests {
		if got := formatMs(tt.d); got != tt.want {
			t.Errorf("formatMs(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTrackAndTopN(t *testing.T) {
	ResetTick()
	for range 3 {
		Track("test.fast")()
	}
	stop := Track("test.slow")
	time.Sleep(2 * time.Millisecond)
	stop()

	snap := Snapshot()
	if len(snap) != 2 || snap[0].Name != "test.slow" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap[1].Calls != 3 {
		t.Errorf("fast calls = %d", snap[1].Calls)
	}
	top := TopN(1)
	if !strings.HasPrefix(top, "test.slow:") || strings.Contains(top, "test.fast") {
		t.Errorf("TopN(1) = %q", top)
	}

	ResetTick()
	if TopN(5) != "" {
		t.Error("reset left samples behind")
	}
}
