package silo

import (
	"github.com/sirupsen/logrus"
)

// log is the package-level structured logger. configureLogging, called by
// NewRuntime, adjusts its level from RuntimeConfig; every Runtime in the
// process logs through this one logger.
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// configureLogging applies cfg.LogLevel to the package logger, falling
// back to Info on an unparseable level rather than failing Runtime
// construction over a logging typo.
func configureLogging(cfg RuntimeConfig) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("log_level", cfg.LogLevel).Warn("unrecognized log level, defaulting to info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}
