package tools

import (
	"log/slog"
	"time"

	"weekly/internal/config"
	"weekly/internal/credentials"
	"weekly/internal/timeutil"
)

// Env is what every adapter needs to serve one call. It holds no per-call
// state, so a single Env may be shared by concurrent calls.
type Env struct {
	Logger     *slog.Logger
	Source     config.Source
	Resolver   *credentials.Resolver
	Normalizer *timeutil.Normalizer
	Timeout    time.Duration
}

// NewEnv derives an Env from src: local zone, per-call timeout and resolver.
func NewEnv(logger *slog.Logger, src config.Source) (*Env, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := config.Location(src)
	if err != nil {
		return nil, err
	}
	timeout, err := config.HTTPTimeout(src)
	if err != nil {
		return nil, err
	}
	return &Env{
		Logger:     logger,
		Source:     src,
		Resolver:   credentials.NewResolver(logger, src, timeout),
		Normalizer: timeutil.New(loc),
		Timeout:    timeout,
	}, nil
}
