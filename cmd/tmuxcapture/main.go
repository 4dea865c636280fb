// Command tmuxcapture attaches to a tmux session through the same Monitor
// API any collaborator would and dumps its live TmuxState as JSON once,
// for manual inspection of aggregator output. Reimplements the original's
// `packages/tmuxy-core/src/bin/tmux_capture.rs` (which forked a PTY and
// attached `tmux attach-session -r` to grab a plain-text rendering) as a
// thin debug CLI over the control-mode Monitor instead, since that is the
// state this bridge actually serves.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"tmuxy/internal/controlmode"
	"tmuxy/internal/emitter"
	"tmuxy/internal/monitor"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cols    = flag.Int("cols", controlmode.InitialPTYCols, "capture width")
		rows    = flag.Int("rows", controlmode.InitialPTYRows, "capture height")
		timeout = flag.Duration("timeout", 5*time.Second, "connect+sync timeout")
	)
	flag.Parse()

	session := "tmuxy"
	if flag.NArg() > 0 {
		session = flag.Arg(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := monitor.DefaultConfig(session)
	cfg.CreateSession = false

	mon, err := monitor.Connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tmuxcapture: connect: %v\n", err)
		return 1
	}

	if err := mon.SyncInitialState(*cols, *rows); err != nil {
		fmt.Fprintf(os.Stderr, "tmuxcapture: initial sync: %v\n", err)
		return 1
	}

	snap := mon.Aggregator().Snapshot()
	state := emitter.FromSnapshot(snap)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		fmt.Fprintf(os.Stderr, "tmuxcapture: encode: %v\n", err)
		return 1
	}
	return 0
}
