package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/mkarpenko/moneta/internal/common"
	"github.com/mkarpenko/moneta/internal/delta"
	"github.com/mkarpenko/moneta/internal/docs"
	"github.com/mkarpenko/moneta/internal/logging"
	"github.com/mkarpenko/moneta/internal/store"
)

// Reconciler performs one pull-merge-push cycle against a sync provider.
// There is no distributed locking: divergent revisions of the same document
// are resolved locally with the delta merge and the result is pushed both
// to the local store and back to the remote.
type Reconciler struct {
	provider Provider
	handle   *store.Handle
	log      logging.Logger
}

// NewReconciler builds a reconciler for one open store and provider.
func NewReconciler(provider Provider, handle *store.Handle, log logging.Logger) *Reconciler {
	return &Reconciler{provider: provider, handle: handle, log: log}
}

// remoteFile is the per-store export object on the provider: a JSON map of
// document id to raw document.
func (r *Reconciler) remoteFile() string {
	return r.handle.Name() + ".json"
}

// Run executes one reconciliation cycle: download the remote export, merge
// divergent documents, push merged documents into the local store, and
// upload the new export. Transient provider failures are retried once.
func (r *Reconciler) Run(ctx context.Context) error {
	remote, err := r.pullRemote(ctx)
	if err != nil {
		return err
	}

	local := r.exportLocal()

	var toPush []docs.Doc
	for id, remoteRaw := range remote {
		localRaw, exists := local[id]
		if exists && revisionOf(localRaw) == revisionOf(remoteRaw) {
			continue
		}

		mergedRaw := remoteRaw
		if exists {
			mergedRaw, err = r.mergeDivergent(ctx, id, localRaw, remoteRaw)
			if err != nil {
				return err
			}
		}

		doc, kind, err := docs.Decode(id, mergedRaw)
		if err != nil || kind == docs.KindUnknown {
			r.log.Warn(ctx, "skipping unmergeable remote document", "id", id, "error", err)
			continue
		}
		toPush = append(toPush, doc)
		local[id] = mergedRaw
	}

	if len(toPush) > 0 {
		if err := r.handle.PushChanges(ctx, toPush); err != nil {
			return fmt.Errorf("apply merged documents: %w", err)
		}
	}

	return r.pushRemote(ctx, local)
}

// mergeDivergent resolves two conflicting revisions of one id. An
// undecidable delta log degrades to the raw field union with a warning, per
// the conflict policy.
func (r *Reconciler) mergeDivergent(ctx context.Context, id string, localRaw, remoteRaw json.RawMessage) (json.RawMessage, error) {
	var localMap, remoteMap map[string]any
	if err := json.Unmarshal(localRaw, &localMap); err != nil {
		return nil, fmt.Errorf("local %q: %w", id, err)
	}
	if err := json.Unmarshal(remoteRaw, &remoteMap); err != nil {
		return nil, fmt.Errorf("remote %q: %w", id, err)
	}

	merged, err := delta.Merge(localMap, remoteMap)
	if errors.Is(err, common.ErrConflict) {
		r.log.Warn(ctx, "delta merge undecidable, using raw field union", "id", id, "error", err)
		merged = delta.RawUnion(localMap, remoteMap)
	} else if err != nil {
		return nil, err
	}

	merged["revision"] = uuid.NewString()
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// exportLocal collects every replicable document from the current snapshot.
// Documents under the "_local/" prefix and ids listed in the local-docs set
// never leave the machine.
func (r *Reconciler) exportLocal() map[string]json.RawMessage {
	snap := r.handle.Snapshot()
	out := map[string]json.RawMessage{}

	add := func(id string, doc docs.Doc) {
		if strings.HasPrefix(id, "_local/") || snap.Local.Has(id) {
			return
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return
		}
		out[id] = raw
	}

	for id, d := range snap.Banks {
		add(id, d)
	}
	for id, d := range snap.Accounts {
		add(id, d)
	}
	for id, d := range snap.Transactions {
		add(id, d)
	}
	for id, d := range snap.Categories {
		add(id, d)
	}
	for id, d := range snap.Budgets {
		add(id, d)
	}
	for id, d := range snap.Bills {
		add(id, d)
	}
	return out
}

func (r *Reconciler) pullRemote(ctx context.Context) (map[string]json.RawMessage, error) {
	var data []byte
	err := r.retryOnce(ctx, func(ctx context.Context) error {
		var err error
		data, err = r.provider.Get(ctx, r.remoteFile())
		return err
	})
	// Only a genuine not-found means this replica syncs first. Any other
	// failure must abort the cycle, or pushRemote would overwrite the remote
	// export with local-only content.
	if errors.Is(err, common.ErrNotFound) {
		r.log.Info(ctx, "no remote export yet", "file", r.remoteFile())
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pull remote export: %w", err)
	}

	var remote map[string]json.RawMessage
	if err := json.Unmarshal(data, &remote); err != nil {
		return nil, fmt.Errorf("parse remote export: %w", err)
	}
	return remote, nil
}

func (r *Reconciler) pushRemote(ctx context.Context, local map[string]json.RawMessage) error {
	data, err := json.Marshal(local)
	if err != nil {
		return err
	}
	return r.retryOnce(ctx, func(ctx context.Context) error {
		_, err := r.provider.Put(ctx, FileInfo{ID: r.remoteFile()}, data)
		return err
	})
}

func (r *Reconciler) retryOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(200*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, common.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func revisionOf(raw json.RawMessage) string {
	var d struct {
		Revision string `json:"revision"`
	}
	_ = json.Unmarshal(raw, &d)
	return d.Revision
}
