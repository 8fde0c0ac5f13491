// Package logger is a small tag-oriented facade over logrus used by every
// package in the service. Calls look like logger.Info("ESI", "fetched 12 orders").
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		PadLevelText:    true,
	})
	return l
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetLevel parses a level name ("debug", "info", "warn", ...). Unknown names keep the current level.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.WithField("tag", "LOG").Warnf("unknown log level %q", level)
		return
	}
	log.SetLevel(lvl)
}

// Writer returns a pipe writer that logs each line at info level.
// The caller owns closing it.
func Writer() *io.PipeWriter {
	return log.WriterLevel(logrus.InfoLevel)
}

func entry(tag string) *logrus.Entry {
	return log.WithField("tag", tag)
}

func Debug(tag, msg string) { entry(tag).Debug(msg) }

func Info(tag, msg string) { entry(tag).Info(msg) }

// Success logs a completed step at info level with status=ok.
func Success(tag, msg string) { entry(tag).WithField("status", "ok").Info(msg) }

func Warn(tag, msg string) { entry(tag).Warn(msg) }

func Error(tag, msg string) { entry(tag).Error(msg) }

// Banner prints the startup line.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	log.WithField("version", version).Info("eve-warehouse starting")
}

// Section marks the start of a group of Stats lines.
func Section(title string) {
	log.Info(fmt.Sprintf("--- %s ---", title))
}

// Stats logs a single key/value statistic.
func Stats(key string, value interface{}) {
	log.WithField(key, value).Info("stat")
}

// Server logs the listen address.
func Server(addr string) {
	entry("Server").Info(fmt.Sprintf("Listening on http://%s", addr))
}
