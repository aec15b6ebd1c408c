package bot

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleStatus reports host health for the owner: useful when the bot runs
// on a small home server and tasks stop arriving.
func (s *Service) handleStatus() (string, error) {
	var sb strings.Builder
	sb.WriteString("Host status:\n")

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fmt.Fprintf(&sb, "  CPU: %.1f%%\n", percents[0])
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&sb, "  Memory: %s / %s (%.1f%%)\n",
			formatBytes(vm.Used), formatBytes(vm.Total), vm.UsedPercent)
	}

	if usage, err := disk.Usage("/"); err == nil {
		fmt.Fprintf(&sb, "  Disk: %s free of %s\n",
			formatBytes(usage.Free), formatBytes(usage.Total))
	}

	return sb.String(), nil
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
