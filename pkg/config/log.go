package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NamedLogger returns a standard-logger entry tagged with the component
// name.
func NamedLogger(name string) *logrus.Entry {
	return logrus.StandardLogger().WithField("component", name)
}

// SetupLogging applies level and format to the standard logger.
func SetupLogging(lc LogConfig) error {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch lc.Format {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", lc.Format)
	}
	return nil
}
