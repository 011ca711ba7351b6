package fusefs

import (
	"errors"
	"sort"
	"syscall"
	"testing"
	"time"

	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/mocks"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func callerCtx(uid, gid uint32) *fuse.Context {
	return &fuse.Context{Caller: fuse.Caller{Owner: fuse.Owner{Uid: uid, Gid: gid}}}
}

// newTestFS returns an adapter over a fresh engine
func newTestFS(t *testing.T) (*FS, *filesystem.FileSystem) {
	t.Helper()
	engine := filesystem.NewFS(nil)
	return New(engine), engine
}

func entryNames(entries []fuse.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func TestFS_GetAttr(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)

	attr, code := fs.GetAttr("", nil)
	require.True(t, code.Ok())
	assert.Equal(t, uint64(fuse.FUSE_ROOT_ID), attr.Ino)
	assert.Equal(t, uint32(fuse.S_IFDIR), attr.Mode&fuse.S_IFDIR)

	_, code = fs.GetAttr("missing", nil)
	assert.Equal(t, fuse.ENOENT, code)
}

func TestFS_MkdirOpenDir(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)

	require.True(t, fs.Mkdir("d", 0o755, callerCtx(10, 20)).Ok())
	require.True(t, fs.Mkdir("d/sub", 0o700, nil).Ok())
	_, code := fs.Create("d/f", 0, 0o644, nil)
	require.True(t, code.Ok())

	attr, err := engine.GetAttr("/d")
	require.NoError(t, err)
	assert.Equal(t, fuse.Owner{Uid: 10, Gid: 20}, attr.Owner, "new nodes belong to the caller")

	entries, code := fs.OpenDir("d", nil)
	require.True(t, code.Ok())
	assert.Equal(t, []string{".", "..", "f", "sub"}, entryNames(entries))
	assert.Equal(t, ".", entries[0].Name)
	assert.Equal(t, "..", entries[1].Name)
	for _, e := range entries[2:] {
		if e.Name == "sub" {
			assert.Equal(t, uint32(fuse.S_IFDIR), e.Mode&syscall.S_IFMT)
		} else {
			assert.Equal(t, uint32(fuse.S_IFREG), e.Mode&syscall.S_IFMT)
		}
		assert.NotZero(t, e.Ino)
	}

	entries, code = fs.OpenDir("", nil)
	require.True(t, code.Ok())
	assert.Equal(t, []string{".", "..", "d"}, entryNames(entries))

	assert.Equal(t, fuse.Status(unix.EEXIST), fs.Mkdir("d", 0o755, nil))
	assert.Equal(t, fuse.ENOENT, fs.Mkdir("x/y", 0o755, nil))
	_, code = fs.OpenDir("d/f", nil)
	assert.Equal(t, fuse.ENOTDIR, code)
}

func TestFS_CreateReadWrite(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)

	nf, code := fs.Create("f", 0, 0o640, callerCtx(1, 2))
	require.True(t, code.Ok())
	f := nf.(*File)
	assert.Equal(t, engine.LastHandle(), f.Handle())

	n, code := f.Write([]byte("AAAA"), 0)
	require.True(t, code.Ok())
	assert.Equal(t, uint32(4), n)
	_, code = f.Write([]byte("BB"), 1)
	require.True(t, code.Ok())

	buf := make([]byte, 16)
	res, code := f.Read(buf, 0)
	require.True(t, code.Ok())
	data, code := res.Bytes(buf)
	require.True(t, code.Ok())
	assert.Equal(t, "ABB", string(data))

	var attr fuse.Attr
	require.True(t, f.GetAttr(&attr).Ok())
	assert.Equal(t, uint64(3), attr.Size)
	assert.Equal(t, fuse.Owner{Uid: 1, Gid: 2}, attr.Owner)

	require.True(t, f.Truncate(1).Ok())
	require.True(t, f.GetAttr(&attr).Ok())
	assert.Equal(t, uint64(1), attr.Size)

	require.True(t, f.Flush().Ok())
	require.True(t, f.Fsync(0).Ok())
	assert.Contains(t, f.String(), "/f")

	_, code = fs.Create("f", 0, 0o644, nil)
	assert.Equal(t, fuse.Status(unix.EEXIST), code)
}

func TestFS_Open(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	created, code := fs.Create("f", 0, 0o644, nil)
	require.True(t, code.Ok())

	opened, code := fs.Open("f", 0, nil)
	require.True(t, code.Ok())
	assert.Greater(t, opened.(*File).Handle(), created.(*File).Handle())

	_, code = fs.Open("missing", 0, nil)
	assert.Equal(t, fuse.ENOENT, code)

	require.True(t, fs.Mkdir("d", 0o755, nil).Ok())
	dir, code := fs.Open("d", 0, nil)
	require.True(t, code.Ok())
	_, code = dir.Write([]byte("x"), 0)
	assert.Equal(t, fuse.Status(unix.EISDIR), code)
}

func TestFS_SymlinkReadlink(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)

	require.True(t, fs.Symlink("/a/b/c", "l", callerCtx(5, 6)).Ok())
	target, code := fs.Readlink("l", nil)
	require.True(t, code.Ok())
	assert.Equal(t, "/a/b/c", target)

	attr, err := engine.GetAttr("/l")
	require.NoError(t, err)
	assert.Equal(t, fuse.Owner{Uid: 5, Gid: 6}, attr.Owner)

	_, code = fs.Readlink("", nil)
	assert.Equal(t, fuse.EINVAL, code)
}

func TestFS_RenameRemove(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)
	require.True(t, fs.Mkdir("d", 0o755, nil).Ok())
	_, code := fs.Create("d/f", 0, 0o644, nil)
	require.True(t, code.Ok())

	assert.Equal(t, fuse.Status(unix.ENOTEMPTY), fs.Rmdir("d", nil))
	assert.Equal(t, fuse.ENOENT, fs.Rename("d/f", "nope/f", nil))
	assert.Equal(t, fuse.EINVAL, fs.Rename("d", "d/sub", nil))

	require.True(t, fs.Rename("d/f", "g", nil).Ok())
	_, err := engine.GetAttr("/g")
	require.NoError(t, err)

	assert.Equal(t, fuse.Status(unix.EISDIR), fs.Unlink("d", nil))
	assert.Equal(t, fuse.ENOTDIR, fs.Rmdir("g", nil))
	require.True(t, fs.Unlink("g", nil).Ok())
	require.True(t, fs.Rmdir("d", nil).Ok())

	names, err := engine.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFS_SetAttr(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)
	_, code := fs.Create("f", 0, 0o644, nil)
	require.True(t, code.Ok())
	_, err := engine.Write("/f", []byte("hello"), 0)
	require.NoError(t, err)

	require.True(t, fs.Chmod("f", 0o600, nil).Ok())
	require.True(t, fs.Chown("f", 7, 8, nil).Ok())
	require.True(t, fs.Truncate("f", 2, nil).Ok())
	mtime := time.Unix(5000, 0)
	require.True(t, fs.Utimens("f", nil, &mtime, nil).Ok())

	attr, err := engine.GetAttr("/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(fuse.S_IFREG|0o600), attr.Mode)
	assert.Equal(t, fuse.Owner{Uid: 7, Gid: 8}, attr.Owner)
	assert.Equal(t, uint64(2), attr.Size)
	assert.Equal(t, uint64(5000), attr.Mtime)

	assert.Equal(t, fuse.ENOENT, fs.Chmod("missing", 0o600, nil))
	assert.Equal(t, fuse.ENOENT, fs.Utimens("missing", nil, nil, nil))
}

func TestFS_FileSetAttr(t *testing.T) {
	t.Parallel()

	fs, engine := newTestFS(t)
	nf, code := fs.Create("f", 0, 0o644, nil)
	require.True(t, code.Ok())

	require.True(t, nf.Chmod(0o400).Ok())
	require.True(t, nf.Chown(3, 4).Ok())
	atime := time.Unix(100, 0)
	require.True(t, nf.Utimens(&atime, nil).Ok())

	attr, err := engine.GetAttr("/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(fuse.S_IFREG|0o400), attr.Mode)
	assert.Equal(t, fuse.Owner{Uid: 3, Gid: 4}, attr.Owner)
	assert.Equal(t, uint64(100), attr.Atime)
}

func TestFS_AccessStatFs(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)

	assert.Equal(t, fuse.OK, fs.Access("", 0o7, nil))
	assert.Equal(t, fuse.ENOENT, fs.Access("missing", 0o4, nil))

	st := fs.StatFs("")
	require.NotNil(t, st)
	assert.Equal(t, uint32(statfsBlockSize), st.Bsize)
	assert.Equal(t, uint32(maxNameLen), st.NameLen)
	assert.Equal(t, "treefs", fs.String())
}

func TestFS_UnknownError(t *testing.T) {
	t.Parallel()

	op := &mocks.MockOperator{}
	op.On("Rmdir", "/d").Return(errors.New("boom"))

	fs := New(op)
	assert.Equal(t, fuse.EIO, fs.Rmdir("d", nil))
	op.AssertExpectations(t)
}

func TestFS_ChownFailureKeepsNewNode(t *testing.T) {
	t.Parallel()

	chownErr := errors.New("boom")
	op := &mocks.MockOperator{}
	op.On("Create", "/f", uint32(0o644)).Return(uint64(7), nil)
	op.On("Mkdir", "/d", uint32(0o755)).Return(nil)
	op.On("Symlink", "/l", "f").Return(nil)
	op.On("Chown", "/f", uint32(10), uint32(20)).Return(chownErr)
	op.On("Chown", "/d", uint32(10), uint32(20)).Return(chownErr)
	op.On("Chown", "/l", uint32(10), uint32(20)).Return(chownErr)

	fs := New(op)
	ctx := callerCtx(10, 20)

	file, code := fs.Create("f", 0, 0o644, ctx)
	require.True(t, code.Ok())
	require.NotNil(t, file)
	assert.Equal(t, uint64(7), file.(*File).Handle())

	assert.True(t, fs.Mkdir("d", 0o755, ctx).Ok())
	assert.True(t, fs.Symlink("f", "l", ctx).Ok())

	op.AssertExpectations(t)
	// the nodes stay, nothing is removed behind the caller's back
	op.AssertNotCalled(t, "Unlink", "/f")
	op.AssertNotCalled(t, "Rmdir", "/d")
}

func TestFS_UnsupportedHooks(t *testing.T) {
	t.Parallel()

	fs, _ := newTestFS(t)
	assert.Equal(t, fuse.ENOSYS, fs.Link("a", "b", nil))
	assert.Equal(t, fuse.ENOSYS, fs.Mknod("a", 0, 0, nil))
}
