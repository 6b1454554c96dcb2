package expand

import (
	"errors"
	"os"
	"syscall"
)

// pathNotFoundOnWindows reports whether err is the Windows analogue of
// ENOENT, surfaced as ERROR_PATH_NOT_FOUND rather than a POSIX errno. Glob
// expansion uses this to treat a missing directory the same way on every
// platform.
func pathNotFoundOnWindows(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && pathErr.Err == syscall.ERROR_PATH_NOT_FOUND
}
