package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
)

// ErrSourceRetained marks a cross-device move whose copy was published but
// whose source could not be removed.
var ErrSourceRetained = errors.New("source retained after copy")

// removeSource is swapped in tests.
var removeSource = os.Remove

// CopyPreserving copies src to dst through a hidden pending file in dst's
// directory and publishes it with a single rename. Permission bits and the
// modification time of src are carried over. dst is either absent or complete;
// a failed copy leaves nothing behind.
func CopyPreserving(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy %s: not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(info.Mode().Perm()))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(pending, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if written != info.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("publish copy: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve modification time: %w", err)
	}
	return nil
}

// MoveFile renames src to dst. Across filesystems it falls back to
// CopyPreserving followed by removing src; when only the removal fails the
// error wraps ErrSourceRetained and dst is already published.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}
	return copyThenRemove(src, dst)
}

func copyThenRemove(src, dst string) error {
	if err := CopyPreserving(src, dst); err != nil {
		return err
	}
	if err := removeSource(src); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceRetained, err)
	}
	return nil
}
