package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

// ReapStale kills renderer processes named like binary that were orphaned
// (re-parented to init) by an overlay that crashed before cleaning up. Left
// alone they keep their layer on screen and desync the next launch.
// Returns the number of processes killed.
func ReapStale(ctx context.Context, binary string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := filepath.Base(binary)

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	killed := 0
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil || pname != name {
			continue
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil || ppid != 1 {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			logger.Warn("failed to kill stale renderer", "pid", p.Pid, "err", err)
			continue
		}
		logger.Info("killed stale renderer", "pid", p.Pid)
		killed++
	}
	return killed, nil
}
