//go:build !windows

package pathmap

import (
	"fmt"
	"os"
	"syscall"
)

// sameDevice checks if two paths are on the same filesystem
func sameDevice(a, b string) (bool, error) {
	fa, err := os.Stat(a)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", a, err)
	}

	fb, err := os.Stat(b)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", b, err)
	}

	sa, ok1 := fa.Sys().(*syscall.Stat_t)
	sb, ok2 := fb.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cannot convert to syscall.Stat_t")
	}

	return sa.Dev == sb.Dev, nil
}
