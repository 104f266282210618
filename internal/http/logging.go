package http

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/logging"
)

func defaultLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}

func handlerLogger(ctx context.Context, fallback *zerolog.Logger, handlerName, operation string) zerolog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	lc := logger.With().Str("handler", handlerName)
	if operation != "" {
		lc = lc.Str("operation", operation)
	}
	return lc.Logger()
}
