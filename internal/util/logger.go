// internal/util/logger.go
package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

// InitLogger initializes the global structured logger.
// It sets up a JSON formatter for production-like logs.
func InitLogger(level string) {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetReportCaller(true)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	logger = l
}

// GetLogger returns the initialized global logger.
func GetLogger() *logrus.Logger {
	if logger == nil {
		InitLogger("info") // Initialize if not already initialized (should be called explicitly at app start)
	}
	return logger
}
