package packager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/wp-release/internal/logger"
)

// warnConcurrentRuns logs a warning for every other process running the same
// executable. Concurrent runs against one build root are unsupported, and
// nothing stops them: this only makes them visible.
func warnConcurrentRuns(ctx context.Context) {
	executable := filepath.Base(os.Args[0])

	processList, err := ps.Processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != executable {
			continue
		}

		logger.WarnKV(ctx, "Another packaging process is running; concurrent runs against the same build root are unsupported",
			"pid", process.Pid(), "executable", executable)
	}
}
