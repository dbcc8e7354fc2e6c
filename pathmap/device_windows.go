//go:build windows

package pathmap

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// sameDevice checks if two paths are on the same volume by comparing
// volume serial numbers.
func sameDevice(a, b string) (bool, error) {
	va, err := volumeSerial(a)
	if err != nil {
		return false, err
	}
	vb, err := volumeSerial(b)
	if err != nil {
		return false, err
	}
	return va == vb, nil
}

func volumeSerial(p string) (uint32, error) {
	name, err := windows.UTF16PtrFromString(p)
	if err != nil {
		return 0, fmt.Errorf("invalid path %s: %w", p, err)
	}

	// FILE_FLAG_BACKUP_SEMANTICS is required to open directories.
	h, err := windows.CreateFile(name, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", p, err)
	}
	return info.VolumeSerialNumber, nil
}
