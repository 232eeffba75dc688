package fsprobe

import (
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/moby/sys/atomicwriter"
)

// OS is the real-filesystem implementation of Filesystem. The zero value is
// ready to use.
type OS struct{}

// Stat probes path with Lstat so symlinks are reported as themselves. Regular
// files are hashed in a streaming pass; other types carry no digest.
func (OS) Stat(path string) (State, error) {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}

	st := State{Exists: true, Size: fi.Size()}
	switch mode := fi.Mode(); {
	case mode.IsRegular():
		st.Type = TypeFile
		sum, err := hashFile(path)
		if err != nil {
			return State{}, err
		}
		st.SHA256 = sum
	case mode.IsDir():
		st.Type = TypeDir
	case mode&fs.ModeSymlink != 0:
		st.Type = TypeSymlink
	default:
		st.Type = TypeIrregular
	}
	return st, nil
}

// ReadFile returns the full content of a regular file.
func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile replaces path with data in a single atomic step: the content is
// written to a sibling temp file, synced, and renamed over the target.
// Readers never observe a partial write.
func (OS) WriteFile(path string, data []byte, mode fs.FileMode) error {
	return atomicwriter.WriteFile(path, data, mode)
}

// Remove deletes the entry at path. Callers are expected to have probed the
// path first; removal policy (what may be deleted) lives in the engine.
func (OS) Remove(path string) error {
	return os.Remove(path)
}

func hashFile(path string) ([32]byte, error) {
	var sum [32]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
