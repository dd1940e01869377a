package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rumpus/rucho/internal/config"
)

// ParseLevel maps a config level name to a zap level. Unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// New builds the application logger writing to stderr.
func New(cfg config.LogConfig) *zap.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds the application logger writing to w.
func NewWithWriter(cfg config.LogConfig, w io.Writer) *zap.Logger {
	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(w), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller())
}

// AccessLogger writes request lines to the configured destination.
type AccessLogger struct {
	*zap.Logger
	// Path is the resolved log file, or "" for a standard stream.
	Path string

	file *lumberjack.Logger
}

// Close flushes the logger and releases the log file, if any.
func (a *AccessLogger) Close() error {
	_ = a.Sync()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// NewAccessLogger resolves cfg.AccessLog: "" or "stderr", "stdout", or a
// file path. Relative paths live under prefix. If the directory cannot be
// created the access log falls back to stderr and a warning goes to app.
func NewAccessLogger(cfg config.LogConfig, prefix string, app *zap.Logger) *AccessLogger {
	if app == nil {
		app = zap.NewNop()
	}

	var (
		out  zapcore.WriteSyncer
		file *lumberjack.Logger
		path string
	)
	switch cfg.AccessLog {
	case "", "stderr":
		out = zapcore.Lock(os.Stderr)
	case "stdout":
		out = zapcore.Lock(os.Stdout)
	default:
		path = cfg.AccessLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(prefix, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			app.Warn("access log directory unavailable, using stderr",
				zap.String("path", path), zap.Error(err))
			out = zapcore.Lock(os.Stderr)
			path = ""
			break
		}
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = zapcore.AddSync(file)
	}

	// Access lines are always written; log.level only filters the app log.
	core := zapcore.NewCore(newEncoder("json"), out, zapcore.DebugLevel)
	return &AccessLogger{
		Logger: zap.New(core).Named("access"),
		Path:   path,
		file:   file,
	}
}
