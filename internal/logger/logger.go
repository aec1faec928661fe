package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// PlainFormatter renders entries as "timestamp - LEVEL - message".
type PlainFormatter struct{}

// Format formats a logrus entry.
func (f *PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05,000")
	level := entry.Level.String()

	switch entry.Level {
	case logrus.DebugLevel:
		level = "DEBUG"
	case logrus.InfoLevel:
		level = "INFO"
	case logrus.WarnLevel:
		level = "WARNING"
	case logrus.ErrorLevel:
		level = "ERROR"
	case logrus.FatalLevel, logrus.PanicLevel:
		level = "CRITICAL"
	}

	return []byte(fmt.Sprintf("%s - %s - %s\n", timestamp, level, entry.Message)), nil
}

// Setup configures the process logger.
func Setup(logLevel string) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&PlainFormatter{})
	logger.SetOutput(os.Stdout)

	return logger
}
