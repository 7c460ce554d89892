// Package log provides structured logging with conversion run context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for pipeline paths (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/justapithecus/canlog/types"
)

// Logger provides structured logging with run context.
// All log entries include run_id and, when set, source.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// RotationConfig configures rotated file output.
type RotationConfig struct {
	// Directory holds the log file. Empty disables file output.
	Directory string
	// Filename defaults to canlog.log.
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Enabled reports whether file output is configured.
func (c RotationConfig) Enabled() bool {
	return c.Directory != ""
}

func (c RotationConfig) writer() *lumberjack.Logger {
	name := c.Filename
	if name == "" {
		name = "canlog.log"
	}
	maxSize := c.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 25
	}
	maxAge := c.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 7
	}
	backups := c.MaxBackups
	if backups <= 0 {
		backups = 5
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.Directory, name),
		MaxSize:    maxSize,
		MaxAge:     maxAge,
		MaxBackups: backups,
		Compress:   c.Compress,
	}
}

// NewLogger creates a new logger with run context.
// Output defaults to os.Stderr.
func NewLogger(runMeta *types.RunMeta) *Logger {
	return newLoggerWithWriter(runMeta, os.Stderr)
}

// NewRotatingLogger creates a logger writing to os.Stderr and, when rotation
// is enabled, to a size-rotated file. The returned closer releases the file.
func NewRotatingLogger(runMeta *types.RunMeta, rotation RotationConfig) (*Logger, io.Closer, error) {
	if !rotation.Enabled() {
		return NewLogger(runMeta), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(rotation.Directory, 0o755); err != nil {
		return nil, nil, err
	}
	rotator := rotation.writer()
	return newLoggerWithWriter(runMeta, io.MultiWriter(os.Stderr, rotator)), rotator, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := newCore(w)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// newLoggerWithWriter creates a logger writing to the specified writer.
func newLoggerWithWriter(runMeta *types.RunMeta, w io.Writer) *Logger {
	var contextFields []zap.Field
	if runMeta != nil {
		contextFields = append(contextFields, zap.String("run_id", runMeta.RunID))
		if runMeta.Source != "" {
			contextFields = append(contextFields, zap.String("source", runMeta.Source))
		}
	}
	return &Logger{zap: zap.New(newCore(w)).With(contextFields...)}
}

// With returns a logger carrying additional context, such as the file being
// reconstructed.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{zap: l.zap.With(zf...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
