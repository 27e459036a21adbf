package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var levelNames = map[logrus.Level]string{
	logrus.TraceLevel: "TRACE",
	logrus.DebugLevel: "DEBUG",
	logrus.InfoLevel:  "INFO",
	logrus.WarnLevel:  "WARN",
	logrus.ErrorLevel: "ERROR",
	logrus.FatalLevel: "FATAL",
	logrus.PanicLevel: "PANIC",
}

// Formatter renders `<timestamp> [<LEVEL>] - <message>` lines. Fields, if
// any, are appended as key=value pairs.
type Formatter struct{}

func (Formatter) Format(e *logrus.Entry) ([]byte, error) {
	level, ok := levelNames[e.Level]
	if !ok {
		level = strings.ToUpper(e.Level.String())
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s [%s] - %s", e.Time.Format(timestampFormat), level, e.Message)
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Options configures the process logger.
type Options struct {
	Level string
	// File, when set, receives a copy of every line and is rotated by size.
	File string
}

// Setup configures the standard logrus logger. The returned closer flushes
// the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(Formatter{})

	if opts.File == "" {
		logrus.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100,
		MaxBackups: 5,
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
