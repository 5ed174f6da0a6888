package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"

	"github.com/gsbingo17/csv-to-salesforce/pkg/match"
)

// MappingConfig is a named, reloadable mapping configuration keyed by the
// source file's column signature and the target object
type MappingConfig struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	Object          string      `json:"object"`
	ColumnSignature string      `json:"columnSignature"`
	Mappings        match.Table `json:"mappings"`
	CreatedAt       time.Time   `json:"createdAt"`
	ModifiedAt      time.Time   `json:"modifiedAt"`
	Version         string      `json:"version"`
}

// Store persists mapping configurations in an embedded key-value document
// database, so a repeat import of a similarly-shaped file skips re-resolution
type Store struct {
	db *buntdb.DB
}

// Open opens (or creates) the mapping store at the given path
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// key builds the document key for an (object, signature) pair
func key(object, signature string) string {
	return fmt.Sprintf("mapping:%s:%s", object, signature)
}

// Save persists a mapping configuration, assigning an ID and timestamps on
// first save
func (s *Store) Save(cfg *MappingConfig) error {
	if cfg.Object == "" || cfg.ColumnSignature == "" {
		return fmt.Errorf("mapping config needs an object and a column signature")
	}

	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
		cfg.CreatedAt = now
	}
	cfg.ModifiedAt = now
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode mapping config: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key(cfg.Object, cfg.ColumnSignature), string(data), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save mapping config: %w", err)
	}
	return nil
}

// Load returns the saved configuration for an (object, signature) pair, or
// nil when none exists
func (s *Store) Load(object, signature string) (*MappingConfig, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(key(object, signature))
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping config: %w", err)
	}

	var cfg MappingConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode mapping config: %w", err)
	}
	return &cfg, nil
}

// List returns all saved mapping configurations
func (s *Store) List() ([]*MappingConfig, error) {
	var configs []*MappingConfig
	var decodeErr error

	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("mapping:*", func(key, value string) bool {
			var cfg MappingConfig
			if err := json.Unmarshal([]byte(value), &cfg); err != nil {
				decodeErr = fmt.Errorf("failed to decode mapping config %s: %w", key, err)
				return false
			}
			configs = append(configs, &cfg)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping configs: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return configs, nil
}

// Delete removes the configuration with the given ID
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var target string
		err := tx.AscendKeys("mapping:*", func(key, value string) bool {
			if strings.Contains(value, id) {
				var cfg MappingConfig
				if json.Unmarshal([]byte(value), &cfg) == nil && cfg.ID == id {
					target = key
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
		if target == "" {
			return fmt.Errorf("no mapping config with id %s", id)
		}
		_, err = tx.Delete(target)
		return err
	})
}
