package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter(t *testing.T) {
	e := &logrus.Entry{
		Time:    time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "slot 100 winner A, 12 ms faster",
		Data:    logrus.Fields{"source": "B", "attempt": 2},
	}

	out, err := Formatter{}.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 12:30:45.123 [INFO] - slot 100 winner A, 12 ms faster attempt=2 source=B\n", string(out))
}

func TestFormatter_Levels(t *testing.T) {
	for lvl, want := range map[logrus.Level]string{
		logrus.TraceLevel: "[TRACE]",
		logrus.DebugLevel: "[DEBUG]",
		logrus.WarnLevel:  "[WARN]",
		logrus.ErrorLevel: "[ERROR]",
	} {
		out, err := Formatter{}.Format(&logrus.Entry{Level: lvl, Message: "source A: 5 consecutive failures"})
		require.NoError(t, err)
		assert.Contains(t, string(out), " "+want+" - source A", lvl.String())
	}
}

func TestSetup(t *testing.T) {
	defer func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetOutput(os.Stderr)
	}()

	_, err := Setup(Options{Level: "loud"})
	require.Error(t, err)

	c, err := Setup(Options{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	require.NoError(t, c.Close())

	c, err = Setup(Options{File: filepath.Join(t.TempDir(), "slotrace.log")})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	logrus.Info("written to file")
	require.NoError(t, c.Close())
}
