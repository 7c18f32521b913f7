//go:build windows

package monitor

// Windows has no per-process descriptor rlimit.
func openFileLimit() int {
	return fallbackFileLimit
}
