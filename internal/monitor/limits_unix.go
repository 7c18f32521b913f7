//go:build !windows

package monitor

import "syscall"

func openFileLimit() int {
	var rlim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlim); err != nil {
		return fallbackFileLimit
	}
	// RLIM_INFINITY does not fit in an int
	if rlim.Cur > maxReportedFileLimit {
		return maxReportedFileLimit
	}
	return int(rlim.Cur)
}
