package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing human-readable lines to stdout.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})
	log.SetLevel(logrus.InfoLevel)
	return log
}

// NewWithLevel returns a logger at the given level name. Unknown names fall
// back to info.
func NewWithLevel(level string) *logrus.Logger {
	log := New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
