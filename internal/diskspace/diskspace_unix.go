//go:build !windows

// Package diskspace reports available free space on the target
// filesystem, used by the job controller's disk-full policy.
package diskspace

import "syscall"

// Free returns available disk space for the given path.
func Free(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
