package server

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// logOutput directs the process log to the configured file, or stderr.
type logOutput struct {
	settings *Settings
	w        io.WriteCloser
}

func (l *logOutput) open() {
	defer func() {
		level, err := log.ParseLevel(strings.ToLower(l.settings.LogLevel))
		if err != nil {
			log.Warningf("invalid LogLevel=%q: %v", l.settings.LogLevel, err)
			return
		}
		log.SetLevel(level)
	}()

	l.w = nopCloser{os.Stderr}
	if l.settings.LogFile != "" {
		f, err := os.OpenFile(l.settings.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			log.Errorf("failed to open LogFile=%q: %v", l.settings.LogFile, err)
		} else {
			l.w = f
		}
	}
	log.SetOutput(l.w)
	log.Debug("log opened")
}

func (l *logOutput) close() {
	log.SetOutput(os.Stderr)
	if l.w != nil {
		l.w.Close()
	}
}

// rotate reopens the log file, for use after it has been moved aside.
func (l *logOutput) rotate() {
	w := l.w
	l.open()
	if w != nil {
		w.Close()
	}
}
