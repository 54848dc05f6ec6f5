// Package prefs is the client-local key-value store for per-well user
// preferences: exclusion sets, baselines, reference points and marker sizes.
// Keys follow the "<feature>_<wellId>" scheme and values are JSON.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Store is the persistence seam. Writes must be visible to the next Get.
type Store interface {
	// Get returns the raw value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
}

// Feature names used to build keys.
const (
	FeatureExcludedCycles = "purge_excluded"
	FeatureBaseline       = "baseline"
	FeatureReferencePoint = "reference_point"
	FeatureMarkerSize     = "marker_size"
)

// Key builds the storage key for a feature and well.
func Key(feature, wellID string) string {
	return feature + "_" + wellID
}

// GetJSON decodes the value stored at key into v. ok is false when absent.
func GetJSON(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v at key as JSON.
func SetJSON(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, raw)
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("prefs: store closed")

// MemoryStore is an in-process Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
