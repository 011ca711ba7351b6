package mocks

import (
	"time"

	"github.com/brettbedarf/treefs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/mock"
)

// MockOperator implements treefs.Operator for testing across packages
type MockOperator struct {
	mock.Mock
}

var _ treefs.Operator = (*MockOperator)(nil)

func (m *MockOperator) GetAttr(path string) (fuse.Attr, error) {
	args := m.Called(path)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(string) fuse.Attr); ok {
		return fn(path), args.Error(1)
	}

	if args.Get(0) == nil {
		return fuse.Attr{}, args.Error(1)
	}
	return args.Get(0).(fuse.Attr), args.Error(1)
}

func (m *MockOperator) ReadDir(path string) ([]string, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockOperator) Mkdir(path string, mode uint32) error {
	args := m.Called(path, mode)
	return args.Error(0)
}

func (m *MockOperator) Create(path string, mode uint32) (uint64, error) {
	args := m.Called(path, mode)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockOperator) Open(path string) (uint64, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockOperator) Read(path string, offset int64, size int) ([]byte, error) {
	args := m.Called(path, offset, size)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(string, int64, int) []byte); ok {
		return fn(path, offset, size), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockOperator) Readlink(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func (m *MockOperator) Write(path string, data []byte, offset int64) (int, error) {
	args := m.Called(path, data, offset)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockOperator) Truncate(path string, size int64) error {
	args := m.Called(path, size)
	return args.Error(0)
}

func (m *MockOperator) Rename(oldPath, newPath string) error {
	args := m.Called(oldPath, newPath)
	return args.Error(0)
}

func (m *MockOperator) Rmdir(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockOperator) Unlink(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockOperator) Symlink(path, target string) error {
	args := m.Called(path, target)
	return args.Error(0)
}

func (m *MockOperator) Chmod(path string, mode uint32) error {
	args := m.Called(path, mode)
	return args.Error(0)
}

func (m *MockOperator) Chown(path string, uid, gid uint32) error {
	args := m.Called(path, uid, gid)
	return args.Error(0)
}

func (m *MockOperator) Utimens(path string, atime, mtime *time.Time) error {
	args := m.Called(path, atime, mtime)
	return args.Error(0)
}
