package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/local/scanlike/internal/assembler"
	"github.com/local/scanlike/internal/scanerr"
	"github.com/local/scanlike/internal/storage"
)

// deliver moves the finished document to out. Local outputs go through a temp
// file in the target directory and a rename, so out is never half-written.
func (o *Orchestrator) deliver(ctx context.Context, src, out string) error {
	if err := checkOutput(out); err != nil {
		return err
	}
	if storage.IsS3(out) {
		if err := o.deps.Storage.Put(ctx, out, src); err != nil {
			return &scanerr.IOError{Op: "upload", Path: out, Err: err}
		}
		return nil
	}
	return WriteAtomic(out, src)
}

// checkOutput accepts local paths and s3:// references only.
func checkOutput(out string) error {
	if storage.IsRemote(out) && !storage.IsS3(out) {
		return fmt.Errorf("%w: %s", ErrUnsupportedOutput, out)
	}
	return nil
}

// WriteAtomic copies src to dst via a sibling temp file and rename.
func WriteAtomic(dst, src string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &scanerr.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &scanerr.IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return &scanerr.IOError{Op: "create", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &scanerr.IOError{Op: op, Path: dst, Err: err}
	}

	if _, err := assembler.Passthrough(tmp, in); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &scanerr.IOError{Op: "close", Path: dst, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &scanerr.IOError{Op: "chmod", Path: dst, Err: err}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return &scanerr.IOError{Op: "rename", Path: dst, Err: err}
	}
	return nil
}
