package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/trace"
	"github.com/brettbedarf/treefs/metrics"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	tfs := New(nil)
	require.NotNil(t, tfs.Engine())
	require.NotNil(t, tfs.Trace())
	assert.Nil(t, tfs.registry)

	attr, err := tfs.Engine().GetAttr("/")
	require.NoError(t, err)
	assert.True(t, attr.IsDir())
	assert.Equal(t, uint32(config.DefaultRootPerms), attr.Mode&0o7777)
}

func TestNew_WithMetrics(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:0"

	tfs := New(cfg)
	require.NotNil(t, tfs.registry)

	// Requests through the interceptor are counted and exported
	require.NoError(t, tfs.Trace().Mkdir("/a", 0o755))
	_, err := tfs.Trace().GetAttr("/missing")
	require.Error(t, err)

	assert.Equal(t, int64(2), tfs.Trace().Total())
	assert.Equal(t, int64(1), tfs.Trace().Counts()[trace.OpMkdir])

	families, err := tfs.registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "treefs_engine_operations_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnmount_NotServing(t *testing.T) {
	t.Parallel()

	tfs := New(nil)
	assert.NoError(t, tfs.Unmount())
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want time.Duration
	}{
		{0, 0},
		{1.0, time.Second},
		{0.5, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seconds(tt.in))
	}
}

func TestServeMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reg := metrics.NewRegistry()
	m := metrics.NewEngineMetrics(reg)
	m.RecordOp(trace.OpRead, time.Millisecond, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveMetrics(ctx, ln, reg)
	}()

	transport := &http.Transport{}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}

	resp, err := client.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `treefs_engine_operations_total{operation="read",status="ok"} 1`)

	resp, err = client.Get("http://" + ln.Addr().String() + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	transport.CloseIdleConnections()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not shut down")
	}
}

func TestServeMetrics_ListenerClosed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serveMetrics(context.Background(), ln, metrics.NewRegistry())
	assert.Error(t, err)
}

// fakeServer stands in for a mounted *fuse.Server
type fakeServer struct {
	unmountErr   error
	unmountCalls atomic.Int32
	done         chan struct{}
	once         sync.Once
}

func newFakeServer(unmountErr error) *fakeServer {
	return &fakeServer{unmountErr: unmountErr, done: make(chan struct{})}
}

func (f *fakeServer) Serve()           {}
func (f *fakeServer) WaitMount() error { return nil }
func (f *fakeServer) Wait()            { <-f.done }

func (f *fakeServer) Unmount() error {
	f.unmountCalls.Add(1)
	if f.unmountErr != nil {
		return f.unmountErr
	}
	f.release()
	return nil
}

// release ends the mount as an external fusermount -u would
func (f *fakeServer) release() {
	f.once.Do(func() { close(f.done) })
}

func newTestTreeFs(t *testing.T, cfg *config.Config, srv fuseServer, mountErr error) *TreeFs {
	t.Helper()
	tfs := New(cfg)
	tfs.mount = func(fuse.RawFileSystem, string, *fuse.MountOptions) (fuseServer, error) {
		if mountErr != nil {
			return nil, mountErr
		}
		return srv, nil
	}
	return tfs
}

// runAsync starts Run and returns a channel with its result
func runAsync(ctx context.Context, tfs *TreeFs) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- tfs.Run(ctx, "/mnt/treefs")
	}()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("cancel unmounts", func(t *testing.T) {
		t.Parallel()
		srv := newFakeServer(nil)
		tfs := newTestTreeFs(t, nil, srv, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := runAsync(ctx, tfs)
		cancel()

		assert.NoError(t, waitRun(t, done))
		assert.Equal(t, int32(1), srv.unmountCalls.Load())
	})

	t.Run("unmount failure returns", func(t *testing.T) {
		t.Parallel()
		srv := newFakeServer(unix.EBUSY)
		t.Cleanup(srv.release)
		tfs := newTestTreeFs(t, nil, srv, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := runAsync(ctx, tfs)
		cancel()

		err := waitRun(t, done)
		assert.ErrorIs(t, err, unix.EBUSY)
		assert.Equal(t, int32(1), srv.unmountCalls.Load())
	})

	t.Run("external unmount", func(t *testing.T) {
		t.Parallel()
		srv := newFakeServer(nil)
		tfs := newTestTreeFs(t, nil, srv, nil)

		done := runAsync(context.Background(), tfs)
		srv.release()

		assert.NoError(t, waitRun(t, done))
		assert.Equal(t, int32(0), srv.unmountCalls.Load())
	})

	t.Run("mount failure", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewDefaultConfig()
		cfg.MetricsAddr = "127.0.0.1:0"
		tfs := newTestTreeFs(t, cfg, nil, errors.New("no fuse"))

		err := tfs.Run(context.Background(), "/mnt/treefs")
		assert.EqualError(t, err, "no fuse")
	})
}

func TestRun_MetricsShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.NewDefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:0"

	for _, unmountErr := range []error{nil, unix.EBUSY} {
		srv := newFakeServer(unmountErr)
		tfs := newTestTreeFs(t, cfg, srv, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := runAsync(ctx, tfs)
		cancel()

		err := waitRun(t, done)
		if unmountErr != nil {
			assert.ErrorIs(t, err, unmountErr)
		} else {
			assert.NoError(t, err)
		}
		// the Wait goroutine of a busy mount is the only one left behind
		srv.release()
	}
}
