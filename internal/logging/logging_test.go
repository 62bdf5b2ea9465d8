package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.log")
	l, closer, err := New(Options{Level: "debug", File: path, Quiet: true, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	l.WithField("chunk", "(0,0,0)").Info("chunk loaded")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "chunk loaded") {
		t.Errorf("log file missing message: %q", data)
	}
}

func captured(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logrus.NewEntry(l), &buf
}

func TestThrottledDropsBurst(t *testing.T) {
	entry, buf := captured(logrus.DebugLevel)
	th := NewThrottled(entry, time.Hour, 2)
	for i := range 10 {
		th.Debugf("probe %d", i)
	}
	if got := strings.Count(buf.String(), "probe"); got != 2 {
		t.Errorf("forwarded %d messages, want 2", got)
	}
	if th.Dropped() != 8 {
		t.Errorf("dropped = %d", th.Dropped())
	}
}

func TestThrottledSkipsDisabledLevels(t *testing.T) {
	entry, buf := captured(logrus.WarnLevel)
	th := NewThrottled(entry, time.Hour, 1)
	th.Debugf("hidden")
	th.Warnf("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
	if th.Dropped() != 0 {
		t.Error("disabled level counted as dropped")
	}
}

func TestThrottledInstancesAreIndependent(t *testing.T) {
	entry, buf := captured(logrus.InfoLevel)
	a := NewThrottled(entry, time.Hour, 1)
	b := NewThrottled(entry, time.Hour, 1)
	a.Infof("a1")
	a.Infof("a2")
	b.Infof("b1")
	out := buf.String()
	if !strings.Contains(out, "a1") || strings.Contains(out, "a2") || !strings.Contains(out, "b1") {
		t.Errorf("output = %q", out)
	}
}
