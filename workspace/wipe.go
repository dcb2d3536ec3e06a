package workspace

import (
	"crypto/rand"
	"fmt"
	"os"
)

// wipeFile overwrites the file's full length with randomPasses passes of
// OS-sourced random bytes followed by one zero pass, then removes it.
// Symlinks are removed without following; only regular file content is
// overwritten in place.
func wipeFile(path string, randomPasses int) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if !info.Mode().IsRegular() {
		return os.Remove(path)
	}

	size := info.Size()
	if size > 0 {
		for pass := 0; pass < randomPasses; pass++ {
			if err := overwrite(path, size, true); err != nil {
				return fmt.Errorf("wipe pass %d of %s: %w", pass+1, path, err)
			}
		}
		if err := overwrite(path, size, false); err != nil {
			return fmt.Errorf("zero pass of %s: %w", path, err)
		}
	}

	return os.Remove(path)
}

// overwrite rewrites length bytes at the start of the file, either random
// filler or zeros, and syncs the result to disk.
func overwrite(path string, length int64, random bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)

	remaining := length
	for remaining > 0 {
		n := int64(chunkSize)
		if remaining < n {
			n = remaining
		}
		chunk := buf[:n]
		if random {
			if _, err := rand.Read(chunk); err != nil {
				return err
			}
		} else {
			for i := range chunk {
				chunk[i] = 0
			}
		}
		if _, err := f.Write(chunk); err != nil {
			return err
		}
		remaining -= n
	}

	return f.Sync()
}
