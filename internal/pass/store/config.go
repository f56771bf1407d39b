// Package store maps the pass domain onto the versioned keyed store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"memberpass/internal/pass/models"
	"memberpass/internal/platform/kvstore"
	"memberpass/internal/sentinel"
)

// ConfigStore holds the platform configuration document and the per-tier
// edition counters. Counters live under their own keys so mints of different
// tiers never contend with each other or with admin writes.
type ConfigStore struct {
	kv kvstore.Store
}

func NewConfigStore(kv kvstore.Store) *ConfigStore {
	return &ConfigStore{kv: kv}
}

type counterDoc struct {
	Next uint64 `json:"next"`
}

// Create writes a fresh configuration. Counters are created first so a stored
// configuration always has them; counters left behind by an interrupted
// create are reused. Returns sentinel.ErrAlreadyUsed if a configuration exists.
func (s *ConfigStore) Create(ctx context.Context, cfg *models.PlatformConfig) error {
	for _, t := range models.Tiers {
		raw, err := json.Marshal(counterDoc{Next: cfg.Tiers[t].NextEdition})
		if err != nil {
			return fmt.Errorf("encode %s counter: %w", t, err)
		}
		if _, err := s.kv.CreateIfAbsent(ctx, editionKey(t), raw); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return fmt.Errorf("create %s counter: %w", t, err)
		}
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode platform config: %w", err)
	}
	entry, err := s.kv.CreateIfAbsent(ctx, configKey, raw)
	if err != nil {
		return fmt.Errorf("create platform config: %w", err)
	}
	cfg.Version = entry.Version
	return nil
}

// Load reads the configuration and fills in each tier's next edition.
func (s *ConfigStore) Load(ctx context.Context) (*models.PlatformConfig, error) {
	entry, err := s.kv.Get(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("load platform config: %w", err)
	}
	var cfg models.PlatformConfig
	if err := json.Unmarshal(entry.Value, &cfg); err != nil {
		return nil, fmt.Errorf("decode platform config: %w", err)
	}
	cfg.Version = entry.Version

	for _, t := range models.Tiers {
		counter, err := s.Counter(ctx, t)
		if err != nil {
			return nil, err
		}
		cfg.Tiers[t].NextEdition = counter.Next
	}
	return &cfg, nil
}

// Save compare-and-swaps the configuration document against cfg.Version and
// advances it on success. Counters are not written.
func (s *ConfigStore) Save(ctx context.Context, cfg *models.PlatformConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode platform config: %w", err)
	}
	entry, err := s.kv.CompareAndSwap(ctx, configKey, cfg.Version, raw)
	if err != nil {
		return fmt.Errorf("save platform config: %w", err)
	}
	cfg.Version = entry.Version
	return nil
}

// Counter reads a tier's edition counter. A missing counter reads as zero at
// version 0, and the first swap creates it.
func (s *ConfigStore) Counter(ctx context.Context, t models.Tier) (models.EditionCounter, error) {
	entry, err := s.kv.Get(ctx, editionKey(t))
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.EditionCounter{Tier: t}, nil
	}
	if err != nil {
		return models.EditionCounter{}, fmt.Errorf("load %s counter: %w", t, err)
	}
	var doc counterDoc
	if err := json.Unmarshal(entry.Value, &doc); err != nil {
		return models.EditionCounter{}, fmt.Errorf("decode %s counter: %w", t, err)
	}
	return models.EditionCounter{Tier: t, Next: doc.Next, Version: entry.Version}, nil
}

// SwapCounter stores next if the counter is still at from.Version. It fails
// with sentinel.ErrConflict when another writer got there first.
func (s *ConfigStore) SwapCounter(ctx context.Context, from, next models.EditionCounter) (models.EditionCounter, error) {
	raw, err := json.Marshal(counterDoc{Next: next.Next})
	if err != nil {
		return models.EditionCounter{}, fmt.Errorf("encode %s counter: %w", next.Tier, err)
	}
	var entry *kvstore.Entry
	if from.Version == 0 {
		entry, err = s.kv.CreateIfAbsent(ctx, editionKey(from.Tier), raw)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			err = fmt.Errorf("%w: %w", err, sentinel.ErrConflict)
		}
	} else {
		entry, err = s.kv.CompareAndSwap(ctx, editionKey(from.Tier), from.Version, raw)
	}
	if err != nil {
		return models.EditionCounter{}, fmt.Errorf("swap %s counter: %w", from.Tier, err)
	}
	next.Version = entry.Version
	return next, nil
}
