//go:build windows

package monitor

import "golang.org/x/sys/windows"

func diskUsage(path string) (DiskUsage, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return DiskUsage{}, err
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return DiskUsage{}, err
	}
	return newDiskUsage(path, total, free), nil
}
