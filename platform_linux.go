//go:build linux

package seqio

import (
	"github.com/fiox/seqio/internal/engine"
	"github.com/fiox/seqio/internal/logging"
)

func newPlatformAdapter(depth int, logger *logging.Logger) (engine.Adapter, error) {
	return engine.NewRingAdapter(depth, logger)
}
