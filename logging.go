package corosched

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured logger used for scheduler diagnostics: worker
// panics and overload signalling (nothing is logged at shutdown). It's a
// thin alias over
// logiface's generic facade, replacing a hand-rolled package-global
// Logger/LogLevel pair with a real, instance-scoped logging dependency
// (see DESIGN.md, ambient stack).
type Logger = logiface.Logger[*zerologEvent]

// zerologEvent adapts a *zerolog.Event to logiface.Event. The upstream
// logiface/zerolog binding's source wasn't available to ground this on
// directly, so this implements the same handful of methods the scheduler
// actually needs directly against zerolog's own Event type.
type zerologEvent struct {
	logiface.UnimplementedEvent
	level Level
	ev    *zerolog.Event
}

func (e *zerologEvent) Level() Level {
	if e.ev == nil {
		return logiface.LevelDisabled
	}
	return e.level
}

func (e *zerologEvent) AddField(key string, val any) {
	if e.ev != nil {
		e.ev.Interface(key, val)
	}
}

func (e *zerologEvent) AddMessage(msg string) bool {
	if e.ev == nil {
		return false
	}
	e.ev.Msg(msg)
	return true
}

func (e *zerologEvent) AddError(err error) bool {
	if e.ev == nil {
		return false
	}
	e.ev.Err(err)
	return true
}

func (e *zerologEvent) AddString(key, val string) bool {
	if e.ev == nil {
		return false
	}
	e.ev.Str(key, val)
	return true
}

func (e *zerologEvent) AddInt(key string, val int) bool {
	if e.ev == nil {
		return false
	}
	e.ev.Int(key, val)
	return true
}

// Level is an alias for logiface's severity level type, so callers of
// NewLogger don't need to import logiface directly.
type Level = logiface.Level

// zerologFactory bridges a zerolog.Logger into logiface's EventFactory and
// Writer roles: NewEvent starts a zerolog event at the requested level, and
// Write finalizes it with a no-op (zerolog.Event sends itself on Msg/Send).
type zerologFactory struct {
	z zerolog.Logger
}

func (f *zerologFactory) NewEvent(level Level) *zerologEvent {
	return &zerologEvent{level: level, ev: f.zerologEvent(level)}
}

func (f *zerologFactory) zerologEvent(level Level) *zerolog.Event {
	switch level {
	case logiface.LevelEmergency, logiface.LevelAlert, logiface.LevelCritical, logiface.LevelError:
		return f.z.Error()
	case logiface.LevelWarning:
		return f.z.Warn()
	case logiface.LevelNotice, logiface.LevelInformational:
		return f.z.Info()
	case logiface.LevelDebug, logiface.LevelTrace:
		return f.z.Debug()
	default:
		return nil
	}
}

func (f *zerologFactory) Write(event *zerologEvent) error {
	// zerolog.Event already flushed itself via Msg in AddMessage; nothing
	// left to do if the caller never set a message (disabled level).
	return nil
}

// NewLogger builds a Logger writing NDJSON to w at the given level.
func NewLogger(w *os.File, level Level) *Logger {
	backend := &zerologFactory{z: zerolog.New(w).With().Timestamp().Logger()}
	return logiface.New[*zerologEvent](
		logiface.WithLevel[*zerologEvent](level),
		logiface.WithEventFactory[*zerologEvent](backend),
		logiface.WithWriter[*zerologEvent](backend),
	)
}

// newNopLogger returns a Logger with logging disabled entirely, used as the
// default when no logger is supplied via WithLogger.
func newNopLogger() *Logger {
	return logiface.New[*zerologEvent](
		logiface.WithLevel[*zerologEvent](logiface.LevelDisabled),
	)
}

func logWorkerPanic(l *Logger, recovered any) {
	l.Err().Any("panic", recovered).Log("worker task panicked")
}

func logOverload(l *Logger, ring string, depth int) {
	l.Warning().Str("ring", ring).Int("depth", depth).Log("ring at capacity")
}
