// Package logging configures the process-wide logrus logger and keeps a
// bounded in-memory tail of recent entries for the management API.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/claudegate/claudegate/internal/config"
)

const logFileName = "claudegate.log"

// Setup applies level and output settings from the configuration and installs
// the broadcaster hook. The returned broadcaster feeds the log tail endpoint.
func Setup(cfg *config.Config) *Broadcaster {
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if cfg.LoggingToFile {
		logFile := filepath.Join(cfg.LogDir, logFileName)
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
		log.Infof("logging to file: %s (with rotation)", logFile)
	} else {
		log.SetOutput(os.Stdout)
	}

	broadcaster := NewBroadcaster(defaultBacklogSize)
	log.AddHook(broadcaster)
	return broadcaster
}
