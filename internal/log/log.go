// Package log writes structured diagnostics for the dictation tools. The
// terminal belongs to the UI, so everything goes to a file under Dir().
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger = zerolog.Nop()
	diagFile *os.File
	textFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

// ResolveDir picks the log directory: the -logpath flag, then SCRIBE_LOG_PATH,
// then the OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("SCRIBE_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	textFile, err = os.OpenFile(filepath.Join(dir, "transcripts_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if textFile != nil {
		textFile.Close()
		textFile = nil
	}
	diagLog = zerolog.Nop()
	logReady = false
}

// Logger returns the diagnostics logger. It discards everything until Init.
func Logger() *zerolog.Logger {
	return &diagLog
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(sessionID, backend, locale string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("backend", backend).
		Str("locale", locale).
		Msg("session_start")
}

// SessionEnd records the closing counters of a dictation session.
func SessionEnd(sessionID string, results, finals, restarts, transientErrors int, fallback bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Int("results", results).
		Int("finals", finals).
		Int("restarts", restarts).
		Int("transient_errors", transientErrors).
		Bool("fallback", fallback).
		Msg("session_end")
}

func Restart(generation uint64, delay time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("generation", generation).
		Dur("delay", delay).
		Msg("recognizer_restart")
}

func TransientError(code, message string) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("code", code).
		Str("message", message).
		Msg("recognizer_error")
}

// TranscriptText appends a handed-off transcript to the transcripts log.
func TranscriptText(sessionID, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, sessionID, text)
	textFile.WriteString(line)
}
