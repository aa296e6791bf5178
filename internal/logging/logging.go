// Package logging constructs the process-wide structured logger. It
// mirrors the original's three-sink layout (console, info log, separate
// error log) using logrus, the logging library this corpus
// reaches for (moby/moby and the runZero socket-stats tools both depend
// on it directly).
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// errorFileHook writes Warn-and-above entries to a second sink, giving
// operators a small, high-signal error log alongside the full info log.
type errorFileHook struct {
	out       io.Writer
	formatter logrus.Formatter
}

func (h *errorFileHook) Levels() []logrus.Level {
	return logrus.AllLevels[:logrus.WarnLevel+1]
}

func (h *errorFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}

// New builds a logrus logger writing to stdout and to logDir/server.log,
// with a second logDir/error.log sink for warnings and errors. If logDir
// is empty, only stdout is used (useful for tests). Both files are opened
// in append mode and are never rotated.
func New(logDir string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if logDir == "" {
		logger.SetOutput(os.Stdout)
		return logger, nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
	}

	infoFile, err := os.OpenFile(logDir+"/server.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}
	errorFile, err := os.OpenFile(logDir+"/error.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, infoFile))
	logger.AddHook(&errorFileHook{out: errorFile, formatter: logger.Formatter})

	return logger, nil
}
