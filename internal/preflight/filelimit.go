package preflight

import (
	"fmt"
	"strings"
	"syscall"
)

const (
	// MinFileDescriptors is the minimum required file descriptor limit.
	MinFileDescriptors = 1024

	// BleveFileDescriptors is the limit below which the bleve backend warns.
	// Its segment files stay open between merges.
	BleveFileDescriptors = 4096
)

// CheckFileDescriptors checks the open file limit for the search backend.
func (c *Checker) CheckFileDescriptors(backend string) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}
	return fileDescriptorResult(result, rLimit.Cur, backend)
}

func fileDescriptorResult(result CheckResult, limit uint64, backend string) CheckResult {
	want := uint64(MinFileDescriptors)
	if strings.EqualFold(backend, "bleve") {
		want = BleveFileDescriptors
	}
	result.Message = fmt.Sprintf("%d (minimum: %d)", limit, want)

	switch {
	case limit < MinFileDescriptors:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' to increase the limit", want)
	case limit < want:
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("The %s backend may run out of file handles; run 'ulimit -n %d'", backend, want)
	default:
		result.Status = StatusPass
	}
	return result
}
