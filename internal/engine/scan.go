package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/codegraph"
)

// ScanCode runs the Code Graph Builder over the project root (spec §4.2
// "scan(options)"), starting the background watcher afterward when
// requested and not disabled by configuration.
func (e *Engine) ScanCode(ctx context.Context, opts codegraph.ScanOptions) (*codegraph.ScanStats, error) {
	stats, err := e.CodeBuilder.Scan(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan code: %w", err)
	}
	e.Assembler.ResetContextCache()

	if opts.Watch && !e.Cfg.DisableCodeWatch {
		scanner := codegraph.NewScanner(opts.Exclude, opts.MaxFiles)
		if err := e.CodeWatcher.Start(ctx, scanner); err != nil {
			return stats, fmt.Errorf("start code watch: %w", err)
		}
	}
	return stats, nil
}

// StopCodeWatch idempotently shuts down the background watcher (spec §4.2
// "stopWatch()").
func (e *Engine) StopCodeWatch() {
	e.CodeWatcher.Stop()
}
