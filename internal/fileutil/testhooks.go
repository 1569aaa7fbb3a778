package fileutil

// SetRenameForTests overrides the final rename step of WriteFileAtomic.
func SetRenameForTests(fn func(oldpath, newpath string) error) func() {
	previous := rename
	rename = fn
	return func() {
		rename = previous
	}
}
