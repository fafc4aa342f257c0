package docs

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpenko/moneta/internal/kv"
)

const (
	syncPrefix = "_local/sync/"

	// LocalDocsKey is the fixed key of the singleton LocalDoc.
	LocalDocsKey = "_local/localDocs"
)

// SyncState describes the health of a sync connection.
type SyncState string

const (
	SyncStateInit     SyncState = "INIT"
	SyncStateOK       SyncState = "OK"
	SyncStateError    SyncState = "ERROR"
	SyncStatePassword SyncState = "ERR_PASSWORD"
)

var syncStates = map[SyncState]struct{}{
	SyncStateInit:     {},
	SyncStateOK:       {},
	SyncStateError:    {},
	SyncStatePassword: {},
}

// SyncConnection configures one remote sync partner. It lives under the
// "_local/" prefix and is excluded from remote replication itself.
type SyncConnection struct {
	Meta

	// Provider identifies the sync backend ("fs", "s3", ...).
	Provider string `json:"provider"`

	// Token is the credential for token-based providers; Root is the folder
	// root for filesystem-based ones. Exactly one is normally set.
	Token string `json:"token,omitempty"`
	Root  string `json:"root,omitempty"`

	State   SyncState `json:"state"`
	Message string    `json:"message,omitempty"`

	// LastAttempt and LastSuccess are epoch milliseconds.
	LastAttempt int64 `json:"lastAttempt,omitempty"`
	LastSuccess int64 `json:"lastSuccess,omitempty"`
}

func (*SyncConnection) DocKind() Kind { return KindSync }

// SyncKey builds the storage key for a sync connection id.
func SyncKey(syncID string) string { return syncPrefix + syncID }

// ParseSyncKey returns the sync id embedded in key.
func ParseSyncKey(key string) (syncID string, ok bool) {
	rest, found := strings.CutPrefix(key, syncPrefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// IsSyncKey reports whether key addresses a SyncConnection document.
func IsSyncKey(key string) bool {
	_, ok := ParseSyncKey(key)
	return ok
}

// SyncRange scans every sync connection document.
func SyncRange() kv.Range { return prefixRange(syncPrefix) }

// NewSyncConnection constructs a sync connection in the INIT state.
func NewSyncConnection(provider string) (*SyncConnection, error) {
	s := &SyncConnection{
		Meta:        Meta{ID: SyncKey(uuid.NewString())},
		Provider:    provider,
		State:       SyncStateInit,
		LastAttempt: time.Now().UnixMilli(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SyncConnection) Validate() error {
	if s.Provider == "" {
		return validationErr("sync provider is required")
	}
	if !IsSyncKey(s.ID) {
		return validationErr("invalid sync key %q", s.ID)
	}
	if _, ok := syncStates[s.State]; !ok {
		return validationErr("invalid sync state %q", s.State)
	}
	return nil
}

// LocalDoc is the singleton set of document ids considered local-only and
// excluded from remote sync.
type LocalDoc struct {
	Meta

	IDs []string `json:"ids"`
}

func (*LocalDoc) DocKind() Kind { return KindLocal }

// NewLocalDoc constructs the singleton local-docs set.
func NewLocalDoc() *LocalDoc {
	return &LocalDoc{Meta: Meta{ID: LocalDocsKey}, IDs: []string{}}
}

// Has reports whether id is marked local-only.
func (l *LocalDoc) Has(id string) bool {
	for _, v := range l.IDs {
		if v == id {
			return true
		}
	}
	return false
}
