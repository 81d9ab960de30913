package eventlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hopper/internal/log"
)

func TestAppendOrderAndIDs(t *testing.T) {
	l := New()

	a := l.Append(RoleScanner, "scan started", LevelInfo)
	b := l.Append(RoleScanner, "found 3 files", LevelSuccess)

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0])
	assert.Equal(t, b, entries[1])
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTimestampsNeverDecrease(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	l := New(WithClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	}))

	first := l.Append(RoleExecutor, "one", LevelInfo)
	second := l.Append(RoleExecutor, "two", LevelInfo)
	third := l.Append(RoleExecutor, "three", LevelInfo)

	assert.Equal(t, base, first.Timestamp)
	assert.Equal(t, base, second.Timestamp, "clock going backwards must be clamped")
	assert.Equal(t, base.Add(time.Second), third.Timestamp)
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := New()
	l.Append(RoleQA, "preview built", LevelSuccess)

	entries := l.Entries()
	entries[0].Message = "rewritten"

	assert.Equal(t, "preview built", l.Entries()[0].Message)
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	l := New()
	e := l.Append(RoleIdle, "hello", Level("trace"))
	assert.Equal(t, LevelInfo, e.Level)
}

func TestFormattingHelpers(t *testing.T) {
	l := New()
	l.Commandf(RoleExecutor, "Switching to runtime %s...", "16.10.0")
	l.Successf(RoleExecutor, "Runtime %s is now active.", "16.10.0")
	l.Warnf(RoleScanner, "File skipped: %s", "src/main.ts")
	l.Errorf(RoleStrategist, "Failed: %s", "boom")
	l.Infof(RoleQA, "Building")

	levels := []Level{}
	for _, e := range l.Entries() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []Level{LevelCommand, LevelSuccess, LevelWarning, LevelError, LevelInfo}, levels)
	assert.Equal(t, "Switching to runtime 16.10.0...", l.Entries()[0].Message)
}

func TestSubscribe(t *testing.T) {
	l := New()
	ch := l.Subscribe(4)

	l.Append(RoleScanner, "one", LevelInfo)
	got := <-ch
	assert.Equal(t, "one", got.Message)

	l.Close()
	_, open := <-ch
	assert.False(t, open)

	// appending after close must not panic
	l.Append(RoleScanner, "two", LevelInfo)
	assert.Equal(t, 2, l.Len())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	l := New()
	_ = l.Subscribe(1)

	done := make(chan struct{})
	go func() {
		l.Append(RoleScanner, "one", LevelInfo)
		l.Append(RoleScanner, "two", LevelInfo)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked on a subscriber")
	}
}

func TestSubscribeUnbufferedStillDelivers(t *testing.T) {
	l := New()
	ch := l.Subscribe(0)

	l.Append(RoleQA, "checked", LevelSuccess)

	select {
	case got := <-ch:
		assert.Equal(t, "checked", got.Message)
	case <-time.After(time.Second):
		t.Fatal("entry was not delivered")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	l := New()
	l.Close()

	ch := l.Subscribe(4)
	l.Append(RoleScanner, "late", LevelInfo)

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription after close was left open")
	}
}

func TestMirrorsToLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = log.NewOutput(&buf)
	l := New(WithLogger(log.New(cfg)))

	l.Append(RoleScanner, "File skipped", LevelWarning)

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"), out)
	assert.True(t, strings.Contains(out, "role=SCANNER"), out)
}
