// Package syncx holds the remote-sync boundary: a uniform Provider
// interface over pluggable storage backends (filesystem, S3), the OAuth
// token model for token-based providers, and the pull-merge-push
// reconciler that resolves divergent replicas with the delta merge.
package syncx

import (
	"context"
	"time"
)

// FileInfo describes one remote file or folder.
type FileInfo struct {
	ID       string
	Name     string
	FolderID string
	Size     int64
	Modified time.Time
}

// Provider is the narrow contract every sync backend implements. The engine
// treats providers uniformly regardless of backing technology.
type Provider interface {
	// CreateConfig prepares the provider for first use (folder layout,
	// credential checks).
	CreateConfig(ctx context.Context) error

	// List enumerates the files under folderID; an empty folderID means the
	// provider root.
	List(ctx context.Context, folderID string) ([]FileInfo, error)

	// Get downloads a file by id.
	Get(ctx context.Context, id string) ([]byte, error)

	// Put uploads data, creating or overwriting the file described by info,
	// and returns the resulting file info.
	Put(ctx context.Context, info FileInfo, data []byte) (FileInfo, error)

	// Del removes a file by id. Deleting an absent file is not an error.
	Del(ctx context.Context, id string) error

	// Mkdir creates a folder under parentID.
	Mkdir(ctx context.Context, parentID, name string) (FileInfo, error)

	// ConfigNeedsUpdate reports whether the provider's credentials must be
	// refreshed before further calls (token-based providers).
	ConfigNeedsUpdate() bool

	// UpdateConfig installs refreshed credentials.
	UpdateConfig(ctx context.Context, token *Token) error
}
