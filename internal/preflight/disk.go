package preflight

import (
	"fmt"
	"syscall"

	"github.com/Aman-CERP/docarchive/internal/ui"
)

// Free space thresholds for the file system holding the data directory.
const (
	MinDiskSpaceBytes = 100 * 1024 * 1024
	LowDiskSpaceBytes = 1024 * 1024 * 1024
)

// CheckDiskSpace warns below LowDiskSpaceBytes and fails below
// MinDiskSpaceBytes. Bundles are stored whole, so a scan batch can need
// hundreds of megabytes at once.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)

	switch {
	case free < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s free (minimum: %s)", ui.FormatBytes(free), ui.FormatBytes(MinDiskSpaceBytes))
		result.Details = "Free up space or move data_dir to a larger volume"
	case free < LowDiskSpaceBytes:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s free, running low", ui.FormatBytes(free))
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s free", ui.FormatBytes(free))
	}
	return result
}
