package filesystem

import "errors"

// Error kinds returned by FileSystem operations. Callers should test for them
// with errors.Is since operations wrap them in an *OpError.
var (
	// ErrNotFound indicates a path, or a required parent path, does not resolve
	ErrNotFound = errors.New("no such file or directory")

	// ErrAlreadyExists indicates the leaf name is already taken in the parent
	ErrAlreadyExists = errors.New("file exists")

	// ErrNotEmpty indicates a directory with children was asked to be removed
	// or replaced
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNotADirectory indicates a non-directory was used where a directory
	// is required, including intermediate path segments
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory indicates a directory was used where file content is
	// required
	ErrIsADirectory = errors.New("is a directory")

	// ErrFileTooLarge indicates a write or truncate would grow content past
	// the configured maximum file size
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidArgument covers malformed paths, root mutations and renaming a
	// directory beneath itself
	ErrInvalidArgument = errors.New("invalid argument")
)

// OpError records the failed operation and the path it was applied to.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op string, path string, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}
