package logging

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes the optional rotating log file.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type Config struct {
	Service  string     `mapstructure:"service"`
	Level    string     `mapstructure:"level"`    // debug|info|warn|error
	Encoding string     `mapstructure:"encoding"` // json|console
	Stdout   bool       `mapstructure:"stdout"`
	File     FileConfig `mapstructure:"file"`
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug/info/warn/error, got %q", c.Level)
	}

	switch strings.ToLower(c.Encoding) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log encoding must be json or console, got %q", c.Encoding)
	}

	if !c.Stdout && c.File.Path == "" {
		return fmt.Errorf("log file path is required when stdout is disabled")
	}
	return nil
}

// Logger bundles the zap logger with the level it was built with so the
// level can be switched at runtime.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New builds a logger from cfg. It does not replace the zap globals.
func New(cfg Config, opts ...zap.Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Encoding) == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, buildWriteSyncer(cfg), level)

	service := cfg.Service
	if service == "" {
		service = "vidtube"
	}
	allOpts := append(opts,
		zap.AddCaller(),
		zap.Fields(zap.String("service", service)),
	)

	return &Logger{Logger: zap.New(core, allOpts...), level: level}, nil
}

func buildWriteSyncer(cfg Config) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer

	if cfg.Stdout {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}

	if p := cfg.File.Path; p != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   p,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxAge:     cfg.File.MaxAgeDays,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}))
	}

	return zapcore.NewMultiWriteSyncer(syncers...)
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetLevel switches the level of every logger derived from l.
func (l *Logger) SetLevel(lvl string) {
	l.level.SetLevel(parseLevel(lvl))
}

// Level reports the current level name.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

// LevelHandler serves the current level on GET and changes it on PUT ?v=debug.
func (l *Logger) LevelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			lvl := r.URL.Query().Get("v")
			if lvl == "" {
				lvl = r.FormValue("v")
			}
			l.SetLevel(lvl)
			l.Info("log level changed", zap.String("now", l.Level()))
		}
		_, _ = w.Write([]byte(l.Level()))
	}
}
