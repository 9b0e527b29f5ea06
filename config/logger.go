// config/logger.go
package config

import (
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

func InitLogger() {
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Logger.SetLevel(logrus.InfoLevel)
}

// SetLogLevel applies a textual level ("debug", "warn", ...). Unknown values keep the current level.
func SetLogLevel(level string) {
	if level == "" {
		return
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		Logger.Warn("Unknown log level, keeping ", Logger.GetLevel(), ": ", level)
		return
	}
	Logger.SetLevel(parsed)
}
