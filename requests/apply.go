package requests

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/filesystem"
	"github.com/brettbedarf/treefs/internal/util"
	"golang.org/x/sync/errgroup"
)

// DefaultFileMode and DefaultDirMode are used when a request has no perms
const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755
)

// maxConcurrentFetches bounds the number of sources fetched at once
const maxConcurrentFetches = 8

// Result summarizes an Apply run
type Result struct {
	Created []string // Paths created, in creation order
	Errors  []error  // One entry per request that failed
}

// Err joins all request errors, or returns nil
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Apply creates every requested node through op: directories first
// (shallowest first, creating missing ancestors), then files with their
// content, then symlinks. A failing request is recorded in the Result and
// does not stop the others. The returned error is only set when ctx ends
// early.
func Apply(ctx context.Context, op treefs.Operator, reqs []treefs.NodeRequestor) (Result, error) {
	logger := util.GetLogger("Requests")

	var (
		dirs  []*treefs.DirCreateRequest
		files []*treefs.FileCreateRequest
		links []*treefs.SymlinkCreateRequest
		res   Result
	)
	for _, r := range reqs {
		switch req := r.(type) {
		case *treefs.DirCreateRequest:
			dirs = append(dirs, req)
		case *treefs.FileCreateRequest:
			files = append(files, req)
		case *treefs.SymlinkCreateRequest:
			links = append(links, req)
		default:
			res.Errors = append(res.Errors, fmt.Errorf("unsupported request type %T", r))
		}
	}
	slices.SortStableFunc(dirs, func(a, b *treefs.DirCreateRequest) int {
		return depth(a.Path) - depth(b.Path)
	})

	contents, fetchErrs := fetchAll(ctx, files)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	fail := func(path string, err error) {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to create node")
		res.Errors = append(res.Errors, err)
	}

	for _, req := range dirs {
		if err := mkdirAll(op, req.Path, valueOrDefault(req.Perms, DefaultDirMode)); err != nil {
			fail(req.Path, err)
			continue
		}
		if err := applyAttrs(op, &req.NodeRequest); err != nil {
			fail(req.Path, err)
			continue
		}
		res.Created = append(res.Created, req.Path)
	}

	for i, req := range files {
		if fetchErrs[i] != nil {
			fail(req.Path, fetchErrs[i])
			continue
		}
		if err := createFile(op, req, contents[i]); err != nil {
			fail(req.Path, err)
			continue
		}
		res.Created = append(res.Created, req.Path)
	}

	for _, req := range links {
		if err := createSymlink(op, req); err != nil {
			fail(req.Path, err)
			continue
		}
		res.Created = append(res.Created, req.Path)
	}

	logger.Info().Int("created", len(res.Created)).Int("failed", len(res.Errors)).Msg("Applied node definitions")
	return res, nil
}

// fetchAll loads the content of every file concurrently. Entry i of the
// results belongs to files[i].
func fetchAll(ctx context.Context, files []*treefs.FileCreateRequest) ([][]byte, []error) {
	contents := make([][]byte, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, req := range files {
		g.Go(func() error {
			contents[i], errs[i] = fetch(gctx, req)
			// per-file failures are reported, not propagated
			return nil
		})
	}
	_ = g.Wait()
	return contents, errs
}

// fetch returns the content of the first source that succeeds, in priority
// order. A file without sources is empty.
func fetch(ctx context.Context, req *treefs.FileCreateRequest) ([]byte, error) {
	if len(req.Sources) == 0 {
		return nil, nil
	}

	sources := slices.Clone(req.Sources)
	slices.SortStableFunc(sources, func(a, b treefs.FileSource) int {
		return a.Priority - b.Priority
	})

	var errs []error
	for _, src := range sources {
		data, err := src.Source.Fetch(ctx)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s: all sources failed: %w", req.Path, errors.Join(errs...))
}

// mkdirAll creates path and any missing ancestors. Existing directories are
// left alone; only path itself gets mode.
func mkdirAll(op treefs.Operator, path string, mode uint32) error {
	segs := filesystem.ParsePath(path)
	for i := range segs {
		cur := segs[:i+1].String()
		m := uint32(DefaultDirMode)
		if i == len(segs)-1 {
			m = mode
		}
		err := op.Mkdir(cur, m)
		if err == nil {
			continue
		}
		if !errors.Is(err, filesystem.ErrAlreadyExists) {
			return err
		}
		// taken: fine if it is a directory
		attr, statErr := op.GetAttr(cur)
		if statErr != nil {
			return statErr
		}
		if !attr.IsDir() {
			return fmt.Errorf("mkdir %s: %w", cur, filesystem.ErrNotADirectory)
		}
	}
	return nil
}

func createFile(op treefs.Operator, req *treefs.FileCreateRequest, data []byte) error {
	parent, _ := filesystem.SplitParent(req.Path)
	if err := mkdirAll(op, parent, DefaultDirMode); err != nil {
		return err
	}
	if _, err := op.Create(req.Path, valueOrDefault(req.Perms, DefaultFileMode)); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := op.Write(req.Path, data, 0); err != nil {
			return err
		}
	}
	return applyAttrs(op, &req.NodeRequest)
}

func createSymlink(op treefs.Operator, req *treefs.SymlinkCreateRequest) error {
	parent, _ := filesystem.SplitParent(req.Path)
	if err := mkdirAll(op, parent, DefaultDirMode); err != nil {
		return err
	}
	if err := op.Symlink(req.Path, req.Target); err != nil {
		return err
	}
	// symlink permission bits are fixed
	attrs := req.NodeRequest
	attrs.Perms = nil
	return applyAttrs(op, &attrs)
}

// applyAttrs sets the optional owner and times of a request. Perms are
// applied by the create call itself, except for directories that already
// existed.
func applyAttrs(op treefs.Operator, req *treefs.NodeRequest) error {
	if req.Perms != nil && req.Type == treefs.DirNodeType {
		if err := op.Chmod(req.Path, *req.Perms); err != nil {
			return err
		}
	}
	if req.OwnerUID != nil || req.OwnerGID != nil {
		attr, err := op.GetAttr(req.Path)
		if err != nil {
			return err
		}
		uid := valueOrDefault(req.OwnerUID, attr.Uid)
		gid := valueOrDefault(req.OwnerGID, attr.Gid)
		if err := op.Chown(req.Path, uid, gid); err != nil {
			return err
		}
	}
	if req.Atime != nil || req.Mtime != nil {
		if err := op.Utimens(req.Path, req.Atime, req.Mtime); err != nil {
			return err
		}
	}
	return nil
}

func depth(path string) int {
	return len(filesystem.ParsePath(path))
}
