package store

import (
	"context"
	"fmt"
)

// DraftKey is the well-known key the editor saves its source under.
const DraftKey = "risePythonSave"

// Drafts saves and loads one client's editor source. Each namespace (a
// client id) holds at most one draft.
type Drafts struct {
	store     Store
	namespace string
}

// NewDrafts scopes store to namespace. An empty namespace uses the bare key.
func NewDrafts(store Store, namespace string) *Drafts {
	return &Drafts{store: store, namespace: namespace}
}

func (d *Drafts) key() string {
	if d.namespace == "" {
		return DraftKey
	}
	return d.namespace + "/" + DraftKey
}

// Save overwrites the saved draft with source.
func (d *Drafts) Save(ctx context.Context, source string) error {
	if err := d.store.Set(ctx, d.key(), source); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the saved draft. ok is false when nothing was saved.
func (d *Drafts) Load(ctx context.Context) (source string, ok bool, err error) {
	source, ok, err = d.store.Get(ctx, d.key())
	if err != nil {
		return "", false, fmt.Errorf("load draft: %w", err)
	}
	return source, ok, nil
}

// Clear removes the saved draft.
func (d *Drafts) Clear(ctx context.Context) error {
	if err := d.store.Delete(ctx, d.key()); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
