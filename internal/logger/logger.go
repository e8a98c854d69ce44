package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Init replaces it; the default writes to
// stdout at info level so packages can log before configuration is loaded,
// interleaving cleanly with the configured logger's console output.
var Log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&lineFormatter{})
	return l
}

// lineFormatter renders "[time] [LEVL] [file:line] msg".
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var fileLine string
	if entry.HasCaller() {
		fileLine = fmt.Sprintf(" [%s:%d]", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	msg := fmt.Sprintf("[%s] [%s]%s %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level, fileLine, entry.Message)
	return []byte(msg), nil
}

// Init configures the global logger from config values. An empty filePath
// keeps console-only output; otherwise logs go to both console and file.
func Init(levelStr, filePath string) error {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&lineFormatter{})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if filePath != "" {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}
	l.SetOutput(io.MultiWriter(writers...))

	Log = l
	return nil
}
