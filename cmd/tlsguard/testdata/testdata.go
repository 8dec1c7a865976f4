package testdata

import (
	"path/filepath"
	"runtime"
)

// Path returns the absolute path of the named file in the testdata directory.
func Path(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), name)
}
