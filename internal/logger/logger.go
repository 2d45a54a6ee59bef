// Package logger настраивает структурированное JSON логирование.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup создает slog.Logger с JSON выводом в w
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault создает логгер и делает его глобальным
func SetupDefault(w io.Writer, level slog.Level) *slog.Logger {
	logger := Setup(w, level)
	slog.SetDefault(logger)
	return logger
}
