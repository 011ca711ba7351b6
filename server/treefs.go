package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/fusefs"
	"github.com/brettbedarf/treefs/internal/trace"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/metrics"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// errUnmounted stops Run's group when the mount disappears on its own
var errUnmounted = errors.New("filesystem unmounted")

// shutdownTimeout bounds the metrics server's graceful shutdown
const shutdownTimeout = 5 * time.Second

// fuseServer is the part of *fuse.Server that TreeFs drives
type fuseServer interface {
	Serve()
	WaitMount() error
	Wait()
	Unmount() error
}

// mountFunc mounts raw at mountPoint
type mountFunc func(raw fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error)

func mountFuse(raw fuse.RawFileSystem, mountPoint string, opts *fuse.MountOptions) (fuseServer, error) {
	srv, err := fuse.NewServer(raw, mountPoint, opts)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// TreeFs wires the engine, the trace interceptor and the FUSE adapter
// together and owns the mount.
type TreeFs struct {
	engine   *filesystem.FileSystem
	trace    *trace.Interceptor
	cfg      *config.Config
	registry *prometheus.Registry // nil when metrics are disabled
	logger   zerolog.Logger
	mount    mountFunc

	mu     sync.Mutex
	server fuseServer
}

// New creates a TreeFs instance given your config. A nil cfg uses the
// defaults.
func New(cfg *config.Config) *TreeFs {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	t := &TreeFs{
		engine: filesystem.NewFS(cfg),
		cfg:    cfg,
		logger: util.GetLogger("Server"),
		mount:  mountFuse,
	}

	m := metrics.NewNoopEngineMetrics()
	if cfg.MetricsAddr != "" {
		t.registry = metrics.NewRegistry()
		m = metrics.NewEngineMetrics(t.registry)
	}
	t.trace = trace.New(t.engine, m)
	return t
}

// Engine returns the tree engine, e.g. for preloading nodes before mounting
func (t *TreeFs) Engine() *filesystem.FileSystem {
	return t.engine
}

// Trace returns the interceptor every FUSE request passes through
func (t *TreeFs) Trace() *trace.Interceptor {
	return t.trace
}

// Serve mounts the filesystem at mountPoint, starts serving requests and
// waits until the mount is ready.
func (t *TreeFs) Serve(mountPoint string) error {
	pathFs := pathfs.NewPathNodeFs(fusefs.New(t.trace), nil)
	conn := nodefs.NewFileSystemConnector(pathFs.Root(), &nodefs.Options{
		EntryTimeout:    seconds(t.cfg.EntryTimeout),
		AttrTimeout:     seconds(t.cfg.AttrTimeout),
		NegativeTimeout: seconds(t.cfg.NegativeTimeout),
	})

	srv, err := t.mount(conn.RawFS(), mountPoint, &fuse.MountOptions{
		Name:       t.cfg.Name,
		FsName:     t.cfg.FsName,
		AllowOther: t.cfg.AllowOther,
		MaxWrite:   t.cfg.MaxWrite,
		Debug:      t.cfg.Debug || t.cfg.LogLvl == util.TraceLevel,
		Logger:     util.NewLogLogger("FuseServer"),
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		return err
	}
	t.logger.Info().
		Str("mountpoint", mountPoint).
		Str("session", t.trace.Session().String()).
		Msg("Filesystem mounted")
	return nil
}

func (t *TreeFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- t.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Unmount cleanly unmounts the filesystem.
func (t *TreeFs) Unmount() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Unmount(); err != nil {
		return err
	}
	t.logger.Info().Int64("calls", t.trace.Total()).Msg("Filesystem unmounted")
	return nil
}

// Run mounts at mountPoint and serves until ctx is done or the filesystem
// is unmounted from outside. The metrics endpoint, if configured, runs
// alongside and is shut down with the mount. If the filesystem cannot be
// unmounted (e.g. it is busy) Run returns the error instead of waiting for
// the mount to go away.
func (t *TreeFs) Run(ctx context.Context, mountPoint string) error {
	var ln net.Listener
	if t.registry != nil {
		var err error
		if ln, err = net.Listen("tcp", t.cfg.MetricsAddr); err != nil {
			return err
		}
	}

	if err := t.Serve(mountPoint); err != nil {
		if ln != nil {
			ln.Close()
		}
		return err
	}

	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	// Wait stays outside the group: it only returns once the mount is gone
	unmounted := make(chan struct{})
	go func() {
		srv.Wait()
		close(unmounted)
	}()

	g, gctx := errgroup.WithContext(ctx)

	if ln != nil {
		g.Go(func() error {
			t.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
			return serveMetrics(gctx, ln, t.registry)
		})
	}

	g.Go(func() error {
		select {
		case <-unmounted:
			// unmounted from outside
			return errUnmounted
		case <-gctx.Done():
		}
		if err := t.Unmount(); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", mountPoint, err)
		}
		<-unmounted
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errUnmounted) {
		return err
	}
	return nil
}

// serveMetrics serves /metrics on ln until ctx is done
func serveMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
		ErrorLog:          util.NewLogLogger("Metrics"),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
