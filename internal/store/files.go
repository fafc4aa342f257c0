package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StoreExt is the extension of encrypted store files under the data
// directory.
const StoreExt = ".moneta"

// StorePath returns the file path of the named store. Names are
// percent-encoded so any user-chosen database name maps to a safe filename.
func StorePath(dataDir, name string) string {
	return filepath.Join(dataDir, url.PathEscape(name)+StoreExt)
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dataDir, err)
	}
	return nil
}

// ListStores enumerates the available store names by decoding the data
// directory listing. Files without the store extension are ignored.
func ListStores(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), StoreExt) {
			continue
		}
		encoded := strings.TrimSuffix(e.Name(), StoreExt)
		name, err := url.PathUnescape(encoded)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
