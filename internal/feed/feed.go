// Package feed supplies market quotes to the engine, either from a live
// websocket stream or from a synthetic random-walk generator.
package feed

import (
	"context"

	"github.com/alfadesk/riskcore/internal/schema"
)

// Feed streams quotes for the requested symbols. Both channels are closed
// when the stream ends; the error channel carries transient delivery problems
// without terminating the stream.
type Feed interface {
	Stream(ctx context.Context, symbols []string) (<-chan schema.Quote, <-chan error)
}
