package app

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Inkwell/internal/config"
)

// ConfigureLogging sets up the standard logrus logger from cfg.
func ConfigureLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stdout)
	if cfg.LogFormat == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
