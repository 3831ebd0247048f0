// Package log builds the structured logger every other package logs
// through. It exists to keep one rule enforceable in one place: nothing
// in this module ever logs key material, plaintext, or passwords — only
// lengths, counts, suite IDs, and error kinds.
package log

import (
	"log/slog"
	"os"
)

// Config selects the logger's verbosity and destination format.
type Config struct {
	Level string // "debug", "info" (default), "warn", "error"
	JSON  bool   // JSON handler when true, text handler otherwise
}

// New builds a slog.Logger per cfg, tagged with the e2ecore component name.
func New(cfg Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(slog.String("component", "e2ecore"))
}

// SuiteAttr logs a suite ID without leaking which suite implementation
// internals look like.
func SuiteAttr(id uint16) slog.Attr {
	return slog.Uint64("suite_id", uint64(id))
}

// ErrorKindAttr logs an error classification by name, never the
// underlying error's full text when that text might embed key material.
func ErrorKindAttr(kind string) slog.Attr {
	return slog.String("error_kind", kind)
}

// LenAttr logs the byte length of a value that must never be logged
// itself (a key, a plaintext, a ciphertext).
func LenAttr(name string, n int) slog.Attr {
	return slog.Int(name+"_len", n)
}
