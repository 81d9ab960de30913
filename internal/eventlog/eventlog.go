// Package eventlog is the append-only audit trail of an orchestration run.
package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/hopper/internal/log"
)

// Role identifies which part of the orchestration produced an entry.
type Role string

const (
	RoleScanner    Role = "SCANNER"
	RoleStrategist Role = "STRATEGIST"
	RoleExecutor   Role = "EXECUTOR"
	RoleQA         Role = "QA"
	RoleIdle       Role = "IDLE"
)

// Level is the entry kind shown to the operator.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelCommand Level = "command"
)

// Validate checks if the level is valid.
func (l Level) Validate() error {
	switch l {
	case LevelInfo, LevelSuccess, LevelError, LevelWarning, LevelCommand:
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", l)
	}
}

func (l Level) logLevel() log.Level {
	switch l {
	case LevelError:
		return log.LevelError
	case LevelWarning:
		return log.LevelWarn
	default:
		return log.LevelInfo
	}
}

// MinSubscriberBuffer is the smallest subscription buffer. Delivery never
// blocks, so an unbuffered channel would miss every entry.
const MinSubscriberBuffer = 1

// Entry is one immutable audit record.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Role      Role      `json:"role" yaml:"role"`
	Message   string    `json:"message" yaml:"message"`
	Level     Level     `json:"level" yaml:"level"`
}

// Log is safe for concurrent readers; the engine is its only writer.
type Log struct {
	mu          sync.RWMutex
	entries     []Entry
	last        time.Time
	now         func() time.Time
	logger      *log.Logger
	subscribers []chan Entry
	closed      bool
}

// Option configures a Log
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger mirrors every appended entry to logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates an empty log
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a new entry. Timestamps never go backwards even when the
// clock does. An unknown level is recorded as info.
func (l *Log) Append(role Role, message string, level Level) Entry {
	if level.Validate() != nil {
		level = LevelInfo
	}

	l.mu.Lock()
	ts := l.now()
	if ts.Before(l.last) {
		ts = l.last
	}
	l.last = ts

	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Role:      role,
		Message:   message,
		Level:     level,
	}
	l.entries = append(l.entries, entry)
	for _, ch := range l.subscribers {
		// Slow subscribers miss entries rather than stall the run; Entries()
		// always holds the complete trail.
		select {
		case ch <- entry:
		default:
		}
	}
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Log(context.Background(), level.logLevel(), message,
			"role", string(role), "kind", string(level), "entry_id", entry.ID)
	}

	return entry
}

// Infof, Successf, Warnf, Errorf and Commandf are formatting shorthands for Append.

func (l *Log) Infof(role Role, format string, args ...any) Entry {
	return l.Append(role, fmt.Sprintf(format, args...), LevelInfo)
}

func (l *Log) Successf(role Role, format string, args ...any) Entry {
	return l.Append(role, fmt.Sprintf(format, args...), LevelSuccess)
}

func (l *Log) Warnf(role Role, format string, args ...any) Entry {
	return l.Append(role, fmt.Sprintf(format, args...), LevelWarning)
}

func (l *Log) Errorf(role Role, format string, args ...any) Entry {
	return l.Append(role, fmt.Sprintf(format, args...), LevelError)
}

func (l *Log) Commandf(role Role, format string, args ...any) Entry {
	return l.Append(role, fmt.Sprintf(format, args...), LevelCommand)
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe returns a channel receiving entries appended from now on.
// Channels are closed by Close; subscribing after Close yields a closed
// channel. Buffers below MinSubscriberBuffer are raised to it.
func (l *Log) Subscribe(buffer int) <-chan Entry {
	if buffer < MinSubscriberBuffer {
		buffer = MinSubscriberBuffer
	}
	ch := make(chan Entry, buffer)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch
	}
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Close closes all subscription channels.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subscribers {
		close(ch)
	}
	l.subscribers = nil
	l.closed = true
}
