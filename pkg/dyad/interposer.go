package dyad

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/dyad-io/dyad/internal/config"
)

// RealTable holds the real I/O entry points the hooks forward to. It replaces
// the dynamic next-symbol lookup of a preload interposer: the table is
// populated at startup and every code path through a hook ends in one of its
// entries, so the application's own I/O always executes. Swapping entries is
// how tests and embedding layers observe or redirect the real calls.
type RealTable struct {
	Open   func(name string, flag int, perm os.FileMode) (*os.File, error)
	Fopen  func(name, mode string) (*os.File, error)
	Close  func(f *os.File) error
	Fclose func(f *os.File) error
}

func defaultRealTable() RealTable {
	return RealTable{
		Open:   os.OpenFile,
		Fopen:  fopenStdio,
		Close:  (*os.File).Close,
		Fclose: (*os.File).Close,
	}
}

var realFns = defaultRealTable()

// SwapRealTable replaces the real-function table and returns the previous
// one. Not safe to call while hooks are running; swap before I/O starts.
func SwapRealTable(t RealTable) RealTable {
	prev := realFns
	if t.Open == nil {
		t.Open = prev.Open
	}
	if t.Fopen == nil {
		t.Fopen = prev.Fopen
	}
	if t.Close == nil {
		t.Close = prev.Close
	}
	if t.Fclose == nil {
		t.Fclose = prev.Fclose
	}
	realFns = t
	return prev
}

// Internal callers reach the real entry points through these; they bypass all
// coordination by construction.

func openReal(name string, flag int, perm os.FileMode) (*os.File, error) {
	return realFns.Open(name, flag, perm)
}

func fopenReal(name, mode string) (*os.File, error) {
	return realFns.Fopen(name, mode)
}

func closeReal(f *os.File) error {
	return realFns.Close(f)
}

func fcloseReal(f *os.File) error {
	return realFns.Fclose(f)
}

// fopenStdio opens name with stdio fopen(3) mode-string semantics.
func fopenStdio(name, mode string) (*os.File, error) {
	flag, err := fopenFlags(mode)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(name, flag, 0o666)
}

func fopenFlags(mode string) (int, error) {
	switch mode {
	case "r", "rb":
		return os.O_RDONLY, nil
	case "r+", "rb+", "r+b":
		return os.O_RDWR, nil
	case "w", "wb":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "w+", "wb+", "w+b":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	case "a", "ab":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "a+", "ab+", "a+b":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
	}
	return 0, fmt.Errorf("unsupported fopen mode %q", mode)
}

// isReadOnlyFlags reports whether the open is purely read-only: access mode
// O_RDONLY and no O_CREAT.
func isReadOnlyFlags(flag int) bool {
	return flag&unix.O_ACCMODE == os.O_RDONLY && flag&os.O_CREATE == 0
}

// isWronly reports whether the descriptor was opened write-only.
func isWronly(fd uintptr) bool {
	flags, err := unix.FcntlInt(fd, unix.F_GETFL, 0)
	if err != nil {
		log.Printf("[INFO] Failed to check descriptor access mode: %v", err)
		return false
	}
	return flags&unix.O_ACCMODE == unix.O_WRONLY
}

// Open is the interposed open entry point. perm is consulted only when flag
// carries O_CREATE, mirroring the variadic mode argument of open(2): the real
// call receives the supplied perm when O_CREATE is set and 0 otherwise (the
// real-table signature always carries a perm; os.OpenFile ignores it without
// O_CREATE).
//
// When the open is a pure read of a file under the consumer-managed prefix,
// the subscriber runs first, so the file exists locally by the time the real
// open executes. A coordination failure is logged and the real open proceeds
// regardless; the application sees only the real call's result.
func Open(name string, flag int, perm ...os.FileMode) (*os.File, error) {
	var mode os.FileMode
	if flag&os.O_CREATE != 0 && len(perm) > 0 {
		mode = perm[0]
	}

	c := current()
	if !c.active() || !isReadOnlyFlags(flag) || isPathDir(name) {
		return openReal(name, flag, mode)
	}

	c.debugf("enters open sync (%q)", name)
	if err := c.openSync(name); err != nil {
		log.Printf("[INFO] Failed open sync (%q): %v", name, err)
	}
	return openReal(name, flag, mode)
}

// Fopen is the interposed fopen entry point. Coordination runs only for mode
// "r"; all other modes pass straight through.
func Fopen(name, mode string) (*os.File, error) {
	c := current()
	if mode != "r" || !c.active() || isPathDir(name) {
		return fopenReal(name, mode)
	}

	c.debugf("enters fopen sync (%q)", name)
	if err := c.openSync(name); err != nil {
		log.Printf("[INFO] Failed fopen sync (%q): %v", name, err)
	}
	return fopenReal(name, mode)
}

// Close is the interposed close entry point. Data is forced durable before
// any ownership announcement: fsync always runs, the real close runs on every
// path, and only a write-only descriptor under the producer-managed prefix
// triggers a publish, after the real close has returned.
func Close(f *os.File) error {
	return closeCommon(f, closeReal)
}

// Fclose is the interposed fclose entry point. os.File has no stdio buffer
// to flush, so Sync alone pins the data down.
func Fclose(f *os.File) error {
	return closeCommon(f, fcloseReal)
}

func closeCommon(f *os.File, realClose func(*os.File) error) error {
	if f == nil {
		return os.ErrInvalid
	}

	c := current()
	toSync := false
	var path string
	if c.active() && f.Name() != "" && !isFileDir(f) {
		if abs, err := filepath.Abs(f.Name()); err == nil {
			path = abs
			toSync = true
		} else {
			c.debugf("unable to resolve path of descriptor: %v", err)
		}
	}

	// Force the data durable before anything else; like the underlying
	// close, a failed fsync does not stop the close.
	f.Sync()

	if toSync && c.syncDir {
		if err := c.syncParentDir(path); err != nil {
			c.debugf("failed to flush parent directory of %q: %v", path, err)
		}
	}

	if toSync && isWronly(f.Fd()) {
		rc := realClose(f)
		c.debugf("enters close sync (%q)", path)
		if err := c.closeSync(path); err != nil {
			log.Printf("[INFO] Failed close sync (%q): %v", path, err)
		}
		return rc
	}
	return realClose(f)
}

// openSync runs the consumer-side coordination for one intercepted open.
// The re-entrancy flag is cleared for the duration of the subscribe so the
// coordinator's own I/O cannot re-trigger the hooks.
func (c *Ctx) openSync(path string) error {
	consPrefix := os.Getenv(config.EnvPathCons)
	if consPrefix == "" {
		c.debugf("open sync not enabled, opening %q", path)
		c.checkOK()
		return nil
	}

	upath, ok := underManagedPrefix(consPrefix, path)
	if !ok {
		c.debugf("open sync: %q is not under %q", path, consPrefix)
		c.checkOK()
		return nil
	}

	c.reenter.Store(false)
	err := c.subscribe(consPrefix, upath)
	c.reenter.Store(true)

	if err == nil {
		c.checkOK()
	}
	return err
}

// closeSync runs the producer-side coordination for one intercepted close.
func (c *Ctx) closeSync(path string) error {
	prodPrefix := os.Getenv(config.EnvPathProd)
	if prodPrefix == "" {
		c.debugf("close sync not enabled, closing %q", path)
		c.checkOK()
		return nil
	}

	upath, ok := underManagedPrefix(prodPrefix, path)
	if !ok {
		c.debugf("close sync: %q is not under %q", path, prodPrefix)
		c.checkOK()
		return nil
	}

	c.reenter.Store(false)
	err := c.publish(upath)
	c.reenter.Store(true)

	if err == nil {
		c.checkOK()
	}
	return err
}

// syncParentDir flushes the directory entry of a freshly closed file so that
// a consumer observing the published record also observes the file name.
// https://lwn.net/Articles/457671/
func (c *Ctx) syncParentDir(path string) error {
	dir := filepath.Dir(path)

	prev := c.reenter.Swap(false)
	defer c.reenter.Store(prev)

	df, err := openReal(dir, os.O_RDONLY, 0)
	if err != nil {
		return coded(SysFail, err)
	}
	syncErr := df.Sync()
	closeErr := closeReal(df)
	if syncErr != nil {
		return coded(SysFail, syncErr)
	}
	if closeErr != nil {
		return coded(SysFail, closeErr)
	}
	return nil
}

// checkOK records hook success for integration tests when check mode is on.
func (c *Ctx) checkOK() {
	if c.check {
		os.Setenv(config.EnvCheck, "ok")
	}
}
