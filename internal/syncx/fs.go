package syncx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkarpenko/moneta/internal/common"
)

// FSProvider implements Provider on a local directory tree (e.g. a folder
// inside a synced drive). File ids are slash-separated paths relative to
// the root.
type FSProvider struct {
	root string
}

var _ Provider = (*FSProvider)(nil)

// NewFSProvider returns a provider rooted at root.
func NewFSProvider(root string) *FSProvider {
	return &FSProvider{root: root}
}

func (p *FSProvider) path(id string) string {
	return filepath.Join(p.root, filepath.FromSlash(id))
}

func (p *FSProvider) CreateConfig(ctx context.Context) error {
	if err := os.MkdirAll(p.root, 0o770); err != nil {
		return fmt.Errorf("create sync root: %w", err)
	}
	return nil
}

func (p *FSProvider) List(ctx context.Context, folderID string) ([]FileInfo, error) {
	dir := p.root
	if folderID != "" {
		dir = p.path(folderID)
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", folderID, err)
	}

	var infos []FileInfo
	for _, e := range entries {
		id := e.Name()
		if folderID != "" {
			id = folderID + "/" + e.Name()
		}
		info := FileInfo{ID: id, Name: e.Name(), FolderID: folderID}
		if fi, err := e.Info(); err == nil {
			info.Size = fi.Size()
			info.Modified = fi.ModTime()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (p *FSProvider) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(p.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("get %q: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	return data, nil
}

func (p *FSProvider) Put(ctx context.Context, info FileInfo, data []byte) (FileInfo, error) {
	id := info.ID
	if id == "" {
		id = info.Name
		if info.FolderID != "" {
			id = info.FolderID + "/" + info.Name
		}
	}
	path := p.path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return FileInfo{}, fmt.Errorf("put %q: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o660); err != nil {
		return FileInfo{}, fmt.Errorf("put %q: %w", id, err)
	}
	info.ID = id
	info.Size = int64(len(data))
	return info, nil
}

func (p *FSProvider) Del(ctx context.Context, id string) error {
	err := os.Remove(p.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("del %q: %w", id, err)
	}
	return nil
}

func (p *FSProvider) Mkdir(ctx context.Context, parentID, name string) (FileInfo, error) {
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	if strings.Contains(name, "/") {
		return FileInfo{}, fmt.Errorf("mkdir: folder name %q contains a separator", name)
	}
	if err := os.MkdirAll(p.path(id), 0o770); err != nil {
		return FileInfo{}, fmt.Errorf("mkdir %q: %w", id, err)
	}
	return FileInfo{ID: id, Name: name, FolderID: parentID}, nil
}

// ConfigNeedsUpdate is always false: filesystem access has no credentials.
func (p *FSProvider) ConfigNeedsUpdate() bool { return false }

func (p *FSProvider) UpdateConfig(ctx context.Context, token *Token) error { return nil }
