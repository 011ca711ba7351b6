// Package trace wraps a treefs.Operator to count, log and measure every call
// made into it. The wrapped engine stays free of logging side effects.
package trace

import (
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/metrics"
	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// Operation names used for counters, log lines and metric labels
const (
	OpGetAttr  = "getattr"
	OpReadDir  = "readdir"
	OpMkdir    = "mkdir"
	OpCreate   = "create"
	OpOpen     = "open"
	OpRead     = "read"
	OpReadlink = "readlink"
	OpWrite    = "write"
	OpTruncate = "truncate"
	OpRename   = "rename"
	OpRmdir    = "rmdir"
	OpUnlink   = "unlink"
	OpSymlink  = "symlink"
	OpChmod    = "chmod"
	OpChown    = "chown"
	OpUtimens  = "utimens"
)

// Interceptor is a treefs.Operator that forwards every call to next and
// records it. Safe for concurrent use.
type Interceptor struct {
	next    treefs.Operator
	metrics metrics.EngineMetrics
	logger  zerolog.Logger
	session uuid.UUID

	counts *xsync.Map[string, *xsync.Counter] // calls per operation
	total  *xsync.Counter
}

var _ treefs.Operator = (*Interceptor)(nil)

// New wraps next. A nil m records no metrics.
func New(next treefs.Operator, m metrics.EngineMetrics) *Interceptor {
	if m == nil {
		m = metrics.NewNoopEngineMetrics()
	}
	session := uuid.New()
	return &Interceptor{
		next:    next,
		metrics: m,
		logger:  util.GetLogger("Trace").With().Str("session", session.String()).Logger(),
		session: session,
		counts:  xsync.NewMap[string, *xsync.Counter](),
		total:   xsync.NewCounter(),
	}
}

// Session identifies this mount in log lines
func (i *Interceptor) Session() uuid.UUID {
	return i.session
}

// Total returns the number of calls made through the interceptor
func (i *Interceptor) Total() int64 {
	return i.total.Value()
}

// Counts returns a snapshot of the number of calls per operation
func (i *Interceptor) Counts() map[string]int64 {
	out := make(map[string]int64, i.counts.Size())
	i.counts.Range(func(op string, c *xsync.Counter) bool {
		out[op] = c.Value()
		return true
	})
	return out
}

func (i *Interceptor) counter(op string) *xsync.Counter {
	if c, ok := i.counts.Load(op); ok {
		return c
	}
	c, _ := i.counts.LoadOrStore(op, xsync.NewCounter())
	return c
}

// observe records one completed call
func (i *Interceptor) observe(op, path string, start time.Time, err error) {
	elapsed := time.Since(start)
	i.counter(op).Inc()
	i.total.Inc()
	i.metrics.RecordOp(op, elapsed, err)

	evt := i.logger.Trace()
	if err != nil {
		evt = i.logger.Debug().Err(err)
	}
	evt.Str("op", op).
		Str("path", path).
		Int64("call", i.total.Value()).
		Dur("elapsed", elapsed).
		Msg("engine call")
}

func (i *Interceptor) GetAttr(path string) (fuse.Attr, error) {
	start := time.Now()
	attr, err := i.next.GetAttr(path)
	i.observe(OpGetAttr, path, start, err)
	return attr, err
}

func (i *Interceptor) ReadDir(path string) ([]string, error) {
	start := time.Now()
	names, err := i.next.ReadDir(path)
	i.observe(OpReadDir, path, start, err)
	return names, err
}

func (i *Interceptor) Mkdir(path string, mode uint32) error {
	start := time.Now()
	err := i.next.Mkdir(path, mode)
	i.observe(OpMkdir, path, start, err)
	return err
}

func (i *Interceptor) Create(path string, mode uint32) (uint64, error) {
	start := time.Now()
	fh, err := i.next.Create(path, mode)
	i.observe(OpCreate, path, start, err)
	return fh, err
}

func (i *Interceptor) Open(path string) (uint64, error) {
	start := time.Now()
	fh, err := i.next.Open(path)
	i.observe(OpOpen, path, start, err)
	return fh, err
}

func (i *Interceptor) Read(path string, offset int64, size int) ([]byte, error) {
	start := time.Now()
	data, err := i.next.Read(path, offset, size)
	i.observe(OpRead, path, start, err)
	i.metrics.RecordBytes(OpRead, len(data))
	return data, err
}

func (i *Interceptor) Readlink(path string) (string, error) {
	start := time.Now()
	target, err := i.next.Readlink(path)
	i.observe(OpReadlink, path, start, err)
	return target, err
}

func (i *Interceptor) Write(path string, data []byte, offset int64) (int, error) {
	start := time.Now()
	n, err := i.next.Write(path, data, offset)
	i.observe(OpWrite, path, start, err)
	i.metrics.RecordBytes(OpWrite, n)
	return n, err
}

func (i *Interceptor) Truncate(path string, size int64) error {
	start := time.Now()
	err := i.next.Truncate(path, size)
	i.observe(OpTruncate, path, start, err)
	return err
}

func (i *Interceptor) Rename(oldPath, newPath string) error {
	start := time.Now()
	err := i.next.Rename(oldPath, newPath)
	i.observe(OpRename, oldPath+" -> "+newPath, start, err)
	return err
}

func (i *Interceptor) Rmdir(path string) error {
	start := time.Now()
	err := i.next.Rmdir(path)
	i.observe(OpRmdir, path, start, err)
	return err
}

func (i *Interceptor) Unlink(path string) error {
	start := time.Now()
	err := i.next.Unlink(path)
	i.observe(OpUnlink, path, start, err)
	return err
}

func (i *Interceptor) Symlink(path, target string) error {
	start := time.Now()
	err := i.next.Symlink(path, target)
	i.observe(OpSymlink, path, start, err)
	return err
}

func (i *Interceptor) Chmod(path string, mode uint32) error {
	start := time.Now()
	err := i.next.Chmod(path, mode)
	i.observe(OpChmod, path, start, err)
	return err
}

func (i *Interceptor) Chown(path string, uid, gid uint32) error {
	start := time.Now()
	err := i.next.Chown(path, uid, gid)
	i.observe(OpChown, path, start, err)
	return err
}

func (i *Interceptor) Utimens(path string, atime, mtime *time.Time) error {
	start := time.Now()
	err := i.next.Utimens(path, atime, mtime)
	i.observe(OpUtimens, path, start, err)
	return err
}
