//go:build windows

package fsutil

import "os"

// atomicWriteFile falls back to write-then-rename since renameio does not
// support Windows.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return err
	}
	return nil
}
