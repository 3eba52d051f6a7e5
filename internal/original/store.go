// Package original remembers what a setting looked like before devassist
// first touched it, so uninstall can put it back exactly.
package original

import (
	"fmt"
	"strings"

	"devassist/internal/models"
	"devassist/internal/options"
)

// DefaultState is returned by Consume when nothing was captured.
const DefaultState = models.Disabled

// Store keeps one record per setting name in an options.Store.
type Store struct {
	options options.Store
}

// New returns a Store persisting through opts
func New(opts options.Store) *Store {
	return &Store{options: opts}
}

// ValueKey is the options key holding the captured state of name
func ValueKey(name string) string {
	return models.KeyPrefix + "_original_" + strings.ToLower(name) + "_value"
}

// ExistenceKey is the options key holding whether the artifact name existed
func ExistenceKey(name string) string {
	return models.KeyPrefix + "_original_" + strings.ToLower(name) + "_existence"
}

// CaptureOnce records state as the original of name unless a valid record
// already exists. It reports whether a record was written.
func (s *Store) CaptureOnce(name string, state models.TriState) (bool, error) {
	if !state.Valid() {
		return false, fmt.Errorf("capture %s: %q is not an allowed value", name, string(state))
	}
	if _, ok, err := s.Peek(name); err != nil || ok {
		return false, err
	}
	if err := s.options.Set(ValueKey(name), string(state)); err != nil {
		return false, fmt.Errorf("failed to store original %s: %w", name, err)
	}
	return true, nil
}

// Peek returns the captured state of name without consuming it. Records that
// do not hold a valid state are treated as absent.
func (s *Store) Peek(name string) (models.TriState, bool, error) {
	v, ok, err := s.options.Get(ValueKey(name))
	if err != nil {
		return "", false, fmt.Errorf("failed to read original %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	state, err := models.ParseTriState(v)
	if err != nil {
		return "", false, nil
	}
	return state, true, nil
}

// Consume returns the captured state of name, or DefaultState, and deletes
// the record so a later install captures afresh.
func (s *Store) Consume(name string) (models.TriState, error) {
	state, ok, err := s.Peek(name)
	if err != nil {
		return "", err
	}
	if err := s.Forget(name); err != nil {
		return "", err
	}
	if !ok {
		return DefaultState, nil
	}
	return state, nil
}

// Target returns what Consume would return, leaving the record in place.
// Restores use it to compute their write and Forget once the write landed.
func (s *Store) Target(name string) (models.TriState, error) {
	state, ok, err := s.Peek(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return DefaultState, nil
	}
	return state, nil
}

// Forget deletes the record for name
func (s *Store) Forget(name string) error {
	if err := s.options.Delete(ValueKey(name)); err != nil {
		return fmt.Errorf("failed to delete original %s: %w", name, err)
	}
	return nil
}

// CaptureExistenceOnce records whether the artifact name existed, unless it
// was recorded before.
func (s *Store) CaptureExistenceOnce(name string, exists bool) (bool, error) {
	key := ExistenceKey(name)
	v, ok, err := s.options.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to read original %s existence: %w", name, err)
	}
	if ok && (v == models.Yes || v == models.No) {
		return false, nil
	}
	value := models.No
	if exists {
		value = models.Yes
	}
	if err := s.options.Set(key, value); err != nil {
		return false, fmt.Errorf("failed to store original %s existence: %w", name, err)
	}
	return true, nil
}

// ConsumeExistence returns whether the artifact name existed before install
// and deletes the record. Unknown origin counts as existing, so nothing is
// deleted on its account.
func (s *Store) ConsumeExistence(name string) (bool, error) {
	key := ExistenceKey(name)
	v, _, err := s.options.Get(key)
	if err != nil {
		return true, fmt.Errorf("failed to read original %s existence: %w", name, err)
	}
	if err := s.options.Delete(key); err != nil {
		return true, fmt.Errorf("failed to delete original %s existence: %w", name, err)
	}
	return v != models.No, nil
}
