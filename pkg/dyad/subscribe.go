package dyad

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dyad-io/dyad/pkg/fetch"
	"github.com/dyad-io/dyad/pkg/keygen"
)

// outputDirMode is the permission set for directories created under the
// consumer prefix: u=rwx g=rwx o=rx plus setgid so group ownership follows
// the managed tree.
const outputDirMode os.FileMode = 0o775

// subscribe resolves the owner of userPath, blocking until a producer has
// published it, and materializes the file under consPrefix when the owner's
// storage is not already visible locally. The caller has cleared the
// re-entrancy flag; every write below goes through the real I/O table.
func (c *Ctx) subscribe(consPrefix, userPath string) error {
	topic, err := keygen.PathKey(userPath, c.keyDepth, c.keyBins)
	if err != nil {
		return coded(SysFail, err)
	}

	if c.kvs == nil {
		return codedf(NoCtx, "no transport handle")
	}

	c.debugf("CONS: waiting for owner of %q", topic)

	// Wait-create lookup: blocks until the producer commits. No timeout.
	val, err := c.kvs.WaitOwner(context.Background(), topic)
	if err != nil {
		return coded(BadLookup, err)
	}

	owner64, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return codedf(BadUnpack, "ownership record %q is not a rank: %v", val, err)
	}
	owner := uint32(owner64)

	c.debugf("CONS: owner of %q is rank %d", topic, owner)

	// If the owner is on the same storage there is no need to transfer.
	if c.sharedStorage || owner == c.rank {
		return nil
	}

	addr, err := c.kvs.WaitPeer(context.Background(), owner)
	if err != nil {
		return coded(BadRPC, err)
	}

	data, err := fetch.Fetch(context.Background(), addr, userPath)
	if err != nil {
		if errors.Is(err, fetch.ErrFinished) {
			return coded(RPCFinished, err)
		}
		return coded(BadFetch, err)
	}

	c.debugf("CONS: received %d bytes for %q", len(data), userPath)

	outPath := filepath.Join(consPrefix, userPath)
	if dir := filepath.Dir(outPath); dir != "." {
		if err := mkdirAsNeeded(dir); err != nil {
			return coded(BadFileIO, err)
		}
	}

	of, err := fopenReal(outPath, "w")
	if err != nil {
		return coded(BadFileIO, err)
	}
	n, err := of.Write(data)
	if err == nil && n != len(data) {
		err = codedf(BadFileIO, "short write to %q: %d of %d bytes", outPath, n, len(data))
	}
	if err != nil {
		fcloseReal(of)
		return coded(BadFileIO, err)
	}
	if err := fcloseReal(of); err != nil {
		return coded(BadFileIO, err)
	}
	return nil
}

// mkdirAsNeeded creates dir and any missing parents with outputDirMode and
// the setgid bit. os.MkdirAll cannot apply setgid, so components are created
// one at a time.
func mkdirAsNeeded(dir string) error {
	if fi, err := os.Stat(dir); err == nil {
		if fi.IsDir() {
			return nil
		}
		return codedf(BadFileIO, "%q exists and is not a directory", dir)
	}

	if parent := filepath.Dir(dir); parent != dir && parent != "." {
		if err := mkdirAsNeeded(parent); err != nil {
			return err
		}
	}

	if err := os.Mkdir(dir, outputDirMode); err != nil {
		if os.IsExist(err) {
			return nil // lost a race with another consumer thread
		}
		return err
	}
	return os.Chmod(dir, outputDirMode|os.ModeSetgid)
}
