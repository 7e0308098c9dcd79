package upstream

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"airnav/notamwatch/notam"
)

// Method identifies which transport actually served a call.
type Method string

const (
	MethodAPI     Method = "api"
	MethodBrowser Method = "browser"
)

// ErrAllTransportsFailed wraps both transport errors when the fallback is
// exhausted too.
var ErrAllTransportsFailed = errors.New("all transports failed")

// Selector wraps the two transports behind one contract. The primary is
// always tried first; the secondary runs only when the primary returns an
// error. Zero records from the primary is a valid, successful outcome and
// never promotes the fallback.
type Selector struct {
	primary   Fetcher
	secondary Fetcher
	log       *zap.Logger
}

func NewSelector(primary, secondary Fetcher, log *zap.Logger) *Selector {
	return &Selector{primary: primary, secondary: secondary, log: log}
}

// Acquire fetches through exactly one transport and reports which.
func (s *Selector) Acquire(ctx context.Context, source notam.Source, window Window) ([]notam.Record, Method, *FetchReport, error) {
	records, report, primaryErr := s.primary.Fetch(ctx, source, window)
	if primaryErr == nil {
		return records, MethodAPI, report, nil
	}
	if ctx.Err() != nil {
		// Cancellation is not a transport failure; do not start a
		// browser session on a dead context.
		return nil, MethodAPI, nil, primaryErr
	}

	if s.secondary == nil {
		return nil, MethodAPI, nil, primaryErr
	}

	s.log.Warn("primary transport failed, falling back to browser",
		zap.String("source", source.Code),
		zap.Error(primaryErr))

	records, report, secondaryErr := s.secondary.Fetch(ctx, source, window)
	if secondaryErr != nil {
		return nil, MethodBrowser, nil, fmt.Errorf("%w: primary: %v; secondary: %w",
			ErrAllTransportsFailed, primaryErr, secondaryErr)
	}
	return records, MethodBrowser, report, nil
}
