package store

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/errors"

	"github.com/rushteam/prodrec/core"
)

// FileSource 从本地 JSON 数据文件读取快照，每次 Load 都重新读取文件。
type FileSource struct {
	Path string
}

// NewFileSource 创建文件数据源
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

var (
	_ core.SnapshotSource = (*FileSource)(nil)
	_ core.SnapshotSaver  = (*FileSource)(nil)
)

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Load(_ context.Context) (*core.Snapshot, error) {
	if f.Path == "" {
		return nil, invalidInput("no data path provided")
	}
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, fmt.Sprintf("data file not found: %s", f.Path))
	}
	if err != nil {
		return nil, errors.Annotatef(err, "read data file %s", f.Path)
	}
	s, err := ParseSnapshot(data)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", f.Path)
	}
	return s, nil
}

// Save 把快照写回数据文件。先写临时文件再 rename，读方不会看到写了一半的文件。
func (f *FileSource) Save(_ context.Context, s *core.Snapshot) error {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return errors.Trace(err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Annotatef(err, "write data file %s", tmp)
	}
	return errors.Annotatef(os.Rename(tmp, f.Path), "replace data file %s", f.Path)
}
