package logging

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Shape describes the dimensions of a logged frame.
type Shape struct {
	Size    int
	Rows    int
	Columns int
}

// Session carries request-scoped fields attached to every performance entry.
type Session struct {
	ID       string
	RemoteIP string
	Fields   []zap.Field
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, if any.
func SessionFrom(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

// PerfLogger records timed operations on a dedicated channel.
type PerfLogger struct {
	logger *zap.Logger
	level  zapcore.Level
}

// NewPerfLogger creates the performance channel. A disabled channel drops
// every entry.
func NewPerfLogger(base *zap.Logger, enabled bool, level int) *PerfLogger {
	if !enabled || base == nil {
		return &PerfLogger{logger: zap.NewNop(), level: zapcore.FatalLevel}
	}
	return &PerfLogger{logger: base.Named("performance"), level: LevelFromNumber(level)}
}

// Enabled reports whether entries at level are recorded.
func (p *PerfLogger) Enabled(level zapcore.Level) bool {
	return p != nil && level >= p.level && p.logger.Core().Enabled(level)
}

// Log records message with the elapsed time, session fields and frame
// shapes. A single frame is logged with plain size/rows/columns keys;
// several frames are logged per name along with their sums.
func (p *PerfLogger) Log(ctx context.Context, level zapcore.Level, message string, elapsed time.Duration, frames map[string]Shape, fields ...zap.Field) {
	if !p.Enabled(level) {
		return
	}

	session := SessionFrom(ctx)
	all := make([]zap.Field, 0, len(fields)+len(session.Fields)+8)
	all = append(all,
		zap.String("session_id", session.ID),
		zap.String("remote_ip", session.RemoteIP),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	all = append(all, frameFields(frames)...)
	all = append(all, session.Fields...)
	all = append(all, fields...)

	if ce := p.logger.Check(level, message); ce != nil {
		ce.Write(all...)
	}
}

func frameFields(frames map[string]Shape) []zap.Field {
	if len(frames) == 0 {
		return nil
	}
	if shape, ok := frames[""]; ok && len(frames) == 1 {
		return []zap.Field{
			zap.Int("size", shape.Size),
			zap.Int("rows", shape.Rows),
			zap.Int("columns", shape.Columns),
		}
	}

	names := make([]string, 0, len(frames))
	for name := range frames {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum Shape
	fields := make([]zap.Field, 0, 3*len(frames)+4)
	for _, name := range names {
		shape := frames[name]
		sum.Size += shape.Size
		sum.Rows += shape.Rows
		sum.Columns += shape.Columns
		fields = append(fields,
			zap.Int(name+".size", shape.Size),
			zap.Int(name+".rows", shape.Rows),
			zap.Int(name+".columns", shape.Columns),
		)
	}
	return append(fields,
		zap.Int("__sum__.size", sum.Size),
		zap.Int("__sum__.rows", sum.Rows),
		zap.Int("__sum__.columns", sum.Columns),
		zap.Int("n_frames", len(frames)),
	)
}
