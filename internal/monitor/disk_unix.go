//go:build !windows

package monitor

import "golang.org/x/sys/unix"

func diskUsage(path string) (DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskUsage{}, err
	}
	bsize := uint64(st.Bsize)
	return newDiskUsage(path, st.Blocks*bsize, st.Bavail*bsize), nil
}
