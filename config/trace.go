package config

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/logging"

	"github.com/J-Leg/cloudcheckin/internal/transcript"
)

// DATEPATTERN for console lines
const DATEPATTERN = "2006-01-02 15:04:05"

// Loggers - one per level
type Loggers struct {
	Info  *log.Logger
	Debug *log.Logger
	Error *log.Logger
}

// newLoggers wires each level to the console, the cloud log and, for Info and
// Error, the run transcript. Debug reaches the console only when Verbose.
func (cfg *Config) newLoggers(rec *transcript.Recorder) *Loggers {
	level := func(name string, severity logging.Severity, console, record bool) *log.Logger {
		var sinks []io.Writer
		if console && cfg.Console != nil {
			sinks = append(sinks, &consoleWriter{out: cfg.Console, level: name, now: time.Now})
		}
		if cfg.CloudLogger != nil {
			sinks = append(sinks, &cloudWriter{logger: cfg.CloudLogger, severity: severity})
		}
		if record && rec != nil {
			sinks = append(sinks, rec.Writer(name))
		}
		if len(sinks) == 0 {
			return log.New(io.Discard, "", 0)
		}
		return log.New(io.MultiWriter(sinks...), "", 0)
	}

	return &Loggers{
		Info:  level("INFO", logging.Info, true, true),
		Debug: level("DEBUG", logging.Debug, cfg.Verbose, false),
		Error: level("ERROR", logging.Error, true, true),
	}
}

type consoleWriter struct {
	out   io.Writer
	level string
	now   func() time.Time
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if _, err := fmt.Fprintf(w.out, "%s %-5s %s\n", w.now().Format(DATEPATTERN), w.level, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

// cloudWriter sends each write as one Cloud Logging entry. Log buffers
// entries; they are flushed by Config.Close.
type cloudWriter struct {
	logger   *logging.Logger
	severity logging.Severity
}

func (w *cloudWriter) Write(p []byte) (int, error) {
	w.logger.Log(logging.Entry{
		Severity: w.severity,
		Payload:  strings.TrimRight(string(p), "\n"),
	})
	return len(p), nil
}
