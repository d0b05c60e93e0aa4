package chunks

import (
	"os"

	"chunkmap/internal/core/errors"
	"chunkmap/internal/shared/jsonutil"
)

// Save writes the chunk map to path as a JSON object keyed by chunk id.
func Save(path string, set *Set) error {
	if err := jsonutil.WriteFile(path, set); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeIO, "write chunk map"), errors.CtxPath, path)
	}
	return nil
}

// Load reads a chunk map previously written by Save.
func Load(path string) (*Set, error) {
	set := NewSet()
	if err := jsonutil.ReadFile(path, set); err != nil {
		code := errors.CodeIO
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return nil, errors.AddContext(errors.Wrap(err, code, "read chunk map"), errors.CtxPath, path)
	}
	return set, nil
}

// Exists reports whether a chunk map artifact is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
