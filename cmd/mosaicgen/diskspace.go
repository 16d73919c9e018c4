package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkDiskSpace verifies the filesystem backing path has at least minGB
// free, grounded on the teacher's main.go pre-flight check (run before
// claiming work, not while it is in flight).
func checkDiskSpace(path string, minGB int) error {
	if minGB <= 0 {
		return nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}
	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if availableGB < float64(minGB) {
		return fmt.Errorf("insufficient disk space: %.2f GB available, %d GB required", availableGB, minGB)
	}
	return nil
}
