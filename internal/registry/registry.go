// Package registry keeps the record of every capsule created on this device:
// its unlock instant, file names and, when enabled, its passphrase.
//
// All records live in one JSON object stored under common.RegistryKey, keyed
// by capsule identifier. Mutations go through kv.Store.Update, so concurrent
// writers never lose each other's records.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/chronovault/internal/capsuleid"
	"github.com/dmitrijs2005/chronovault/internal/common"
	"github.com/dmitrijs2005/chronovault/internal/models"
	"github.com/dmitrijs2005/chronovault/internal/repositories/kv"
)

type recordJSON struct {
	UnlockDate string   `json:"unlockDate"`
	Password   string   `json:"password,omitempty"`
	FilesList  []string `json:"filesList"`
}

type Registry struct {
	store kv.Store
	key   string
	mu    sync.Mutex
}

func New(store kv.Store) *Registry {
	return &Registry{store: store, key: common.RegistryKey}
}

// Put stores rec, replacing any record with the same identifier. replaced
// reports whether such a record existed.
func (r *Registry) Put(ctx context.Context, rec models.Record) (replaced bool, err error) {
	if !capsuleid.Valid(rec.ID) {
		return false, common.NewValidationError("id", common.ErrInvalidCapsuleID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.store.Update(ctx, r.key, func(cur []byte) ([]byte, error) {
		all, err := decode(cur)
		if err != nil {
			return nil, err
		}
		_, replaced = all[rec.ID]
		all[rec.ID] = toJSON(rec)
		return json.Marshal(all)
	})
	if err != nil {
		return false, fmt.Errorf("registry put %s: %w", rec.ID, err)
	}
	return replaced, nil
}

// Get returns the record for id. found is false when there is none.
func (r *Registry) Get(ctx context.Context, id string) (rec models.Record, found bool, err error) {
	all, err := r.load(ctx)
	if err != nil {
		return models.Record{}, false, err
	}
	raw, ok := all[id]
	if !ok {
		return models.Record{}, false, nil
	}
	rec, err = fromJSON(id, raw)
	if err != nil {
		return models.Record{}, false, err
	}
	return rec, true, nil
}

// Clear removes the record for id. Clearing an absent id is not an error.
// The whole blob is removed once it holds no records.
func (r *Registry) Clear(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.Update(ctx, r.key, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, nil
		}
		all, err := decode(cur)
		if err != nil {
			return nil, err
		}
		delete(all, id)
		if len(all) == 0 {
			return nil, nil
		}
		return json.Marshal(all)
	})
	if err != nil {
		return fmt.Errorf("registry clear %s: %w", id, err)
	}
	return nil
}

// List returns every record ordered by unlock instant, then identifier.
func (r *Registry) List(ctx context.Context) ([]models.Record, error) {
	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(all))
	for id, raw := range all {
		rec, err := fromJSON(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnlockAt.Equal(out[j].UnlockAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UnlockAt.Before(out[j].UnlockAt)
	})
	return out, nil
}

func (r *Registry) load(ctx context.Context) (map[string]recordJSON, error) {
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("registry load: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (map[string]recordJSON, error) {
	all := make(map[string]recordJSON)
	if len(raw) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("registry decode: %w", err)
	}
	return all, nil
}

func toJSON(rec models.Record) recordJSON {
	files := rec.Files
	if files == nil {
		files = []string{}
	}
	return recordJSON{
		UnlockDate: capsuleid.FormatInstant(rec.UnlockAt),
		Password:   rec.Passphrase,
		FilesList:  files,
	}
}

func fromJSON(id string, raw recordJSON) (models.Record, error) {
	unlockAt, err := capsuleid.ParseInstant(raw.UnlockDate)
	if err != nil {
		return models.Record{}, fmt.Errorf("registry record %s: %w", id, err)
	}
	return models.Record{
		ID:         id,
		UnlockAt:   unlockAt,
		Passphrase: raw.Password,
		Files:      raw.FilesList,
	}, nil
}
