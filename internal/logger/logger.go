package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 结构化日志接口，参数以 key/value 成对传入
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Err(err error, msg string, args ...any)
	With(args ...any) Logger
}

// Options 日志配置
type Options struct {
	Level   string
	Writers []string
	File    string
	// MaxSizeMB 单个日志文件大小上限
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type zlog struct {
	z zerolog.Logger
}

// New 根据配置创建 zerolog 日志实例
func New(opts Options) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			writers = append(writers, newFileWriter(opts))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}

	z := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &zlog{z: z}
}

// NewWriter 以任意 io.Writer 作为输出，输出 JSON 行
func NewWriter(w io.Writer, level string) Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.DebugLevel
	}
	return &zlog{z: zerolog.New(w).Level(lv).With().Timestamp().Logger()}
}

func newFileWriter(opts Options) io.Writer {
	file := opts.File
	if file == "" {
		file = filepath.Join("logs", "llmsecrets.log")
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 20
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}

func (l *zlog) Debug(msg string, args ...any) { l.z.Debug().Fields(args).Msg(msg) }

func (l *zlog) Info(msg string, args ...any) { l.z.Info().Fields(args).Msg(msg) }

func (l *zlog) Warn(msg string, args ...any) { l.z.Warn().Fields(args).Msg(msg) }

func (l *zlog) Error(msg string, args ...any) { l.z.Error().Fields(args).Msg(msg) }

func (l *zlog) Err(err error, msg string, args ...any) {
	l.z.Error().Err(err).Fields(args).Msg(msg)
}

func (l *zlog) With(args ...any) Logger {
	return &zlog{z: l.z.With().Fields(args).Logger()}
}

type nop struct{}

// NewNop 返回丢弃所有输出的日志实例
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any)      {}
func (nop) Info(string, ...any)       {}
func (nop) Warn(string, ...any)       {}
func (nop) Error(string, ...any)      {}
func (nop) Err(error, string, ...any) {}
func (n nop) With(...any) Logger      { return n }
