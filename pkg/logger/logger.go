// Package logger builds the shared application logger.
package logger

import (
	"github.com/sirupsen/logrus"
)

// New creates a logrus logger with the given level name.
// Unknown level names fall back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
