package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// EnsureDataDirs creates the persistent layout under root:
// per-record directories for artifacts, submissions and bots. The ledger,
// catalog and checkpoint files live directly under root.
func EnsureDataDirs(root string) error {
	for _, sub := range []string{"artifacts", "submissions", "bots"} {
		if err := os.MkdirAll(filepath.Join(root, sub), os.ModePerm); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSONAtomic marshals v and writes it via a temp file + rename in the
// same directory, so readers observing the path by mtime never see a
// half-written file.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSON loads path into v. Returns os.ErrNotExist wrapped errors as-is so
// callers can map them to not-found semantics.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
