package archive

import (
	"fmt"
	"os"

	"github.com/umputun/postkit/pkg/domain"
)

// WriteFile writes an artifact. Unless overwrite is set the file must not exist yet.
// Failures are wrapped with domain.ErrFileSystem.
func WriteFile(path string, data []byte, overwrite bool) (err error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	fh, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // archive files are meant to be world-readable
	if err != nil {
		return fsError("open", path, err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fsError("close", path, cerr)
		}
	}()

	if _, err := fh.Write(data); err != nil {
		return fsError("write", path, err)
	}
	return nil
}

func fsError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrFileSystem, op, path, err)
}
