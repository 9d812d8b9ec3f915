// Command cognitive-core runs the tiered-executor learning agent of
// spec.md: a cooperative solve loop over HDC pattern memory, active-
// inference strategy selection, Ebbinghaus episodic memory, and a
// circadian sleep/consolidation cycle. Grounded on the teacher's
// cmd/echoself and cmd/autonomous_v6 entrypoints — signal-driven graceful
// shutdown, zap structured logging, a thin main that delegates into the
// cobra command tree.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cognitive-core: logger init failed: %v\n", err)
		return 1
	}
	defer log.Sync()

	root := newRootCommand(log.Sugar())
	if err := root.Execute(); err != nil {
		if err == errInterrupted {
			return 130
		}
		log.Sugar().Errorw("fatal", "error", err)
		return 1
	}
	return 0
}
