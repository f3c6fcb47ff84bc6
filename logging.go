package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelFlag      = "log-level"
	logFileFlag       = "log-file"
	logMaxSizeFlag    = "log-max-size"
	logMaxBackupsFlag = "log-max-backups"
)

var logFile *lumberjack.Logger

func registerLogFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   logLevelFlag,
			Usage:  "log level",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   logFileFlag,
			Usage:  "rotated log file, stderr only when empty",
			EnvVar: "LOG_FILE",
		},
		cli.IntFlag{
			Name:   logMaxSizeFlag,
			Usage:  "log file size in megabytes before rotation",
			Value:  50,
			EnvVar: "LOG_MAX_SIZE",
		},
		cli.IntFlag{
			Name:   logMaxBackupsFlag,
			Usage:  "rotated log files to keep",
			Value:  3,
			EnvVar: "LOG_MAX_BACKUPS",
		},
	)
}

func setupLogging(c *cli.Context) error {
	lvl, err := log.ParseLevel(c.GlobalString(logLevelFlag))
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	log.SetLevel(lvl)
	name := c.GlobalString(logFileFlag)
	if name == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return errors.Wrapf(err, "failed to create log folder for %v", name)
	}
	logFile = &lumberjack.Logger{
		Filename:   name,
		MaxSize:    c.GlobalInt(logMaxSizeFlag),
		MaxBackups: c.GlobalInt(logMaxBackupsFlag),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.WithField("file", name).Info("logging to file")
	return nil
}

func closeLogging(_ *cli.Context) error {
	if logFile == nil {
		return nil
	}
	return logFile.Close()
}
