package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/logger"
)

// Store is a JSON-file backed key-value store. Every mutation rewrites the
// whole file; mu serializes writers so rewrites never interleave.
type Store struct {
	mu     sync.RWMutex
	path   string
	data   map[string]json.RawMessage
	logger logger.Logger
}

// Open loads the store at path. A missing file is treated as an empty store
// and created immediately. A file that cannot be decoded is moved aside to
// "<path>.corrupt-<unix>" and the store starts empty.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.StoreIO(err, "resolve store path")
	}

	s := &Store{
		path:   abs,
		data:   make(map[string]json.RawMessage),
		logger: log.WithField("store", abs),
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, apperrors.StoreIO(err, "create store directory")
	}

	raw, err := os.ReadFile(abs)
	switch {
	case os.IsNotExist(err):
		s.logger.Info("Store file not found, creating an empty one")
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, apperrors.StoreIO(err, "read store file")
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", abs, time.Now().Unix())
		s.logger.WithError(err).WarnWithFields("Store file is not valid JSON, starting empty", map[string]interface{}{
			"moved_to": aside,
		})
		if err := os.Rename(abs, aside); err != nil {
			return nil, apperrors.StoreIO(err, "move corrupt store file aside")
		}
		s.data = make(map[string]json.RawMessage)
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if s.data == nil {
		s.data = make(map[string]json.RawMessage)
	}

	s.logger.DebugWithFields("Store loaded", map[string]interface{}{"keys": len(s.data)})
	return s, nil
}

// Path returns the absolute path of the backing file
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value stored under key into dst. It reports false if the
// key is absent.
func (s *Store) Get(key string, dst interface{}) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, apperrors.Wrap(apperrors.ErrorTypeParsing, err, fmt.Sprintf("decode value for %q", key))
	}
	return true, nil
}

// Has reports whether key is present
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Set stores value under key and synchronously rewrites the file. On write
// failure the in-memory state is rolled back.
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeParsing, err, fmt.Sprintf("encode value for %q", key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.data[key]
	s.data[key] = raw
	if err := s.writeLocked(); err != nil {
		if existed {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op and does not touch the file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[key]
	if !ok {
		return nil
	}
	delete(s.data, key)
	if err := s.writeLocked(); err != nil {
		s.data[key] = prev
		return err
	}
	return nil
}

// Reset removes every key
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data
	s.data = make(map[string]json.RawMessage)
	if err := s.writeLocked(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

// Flush rewrites the file from the in-memory state
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

// Keys returns all keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// writeLocked atomically replaces the file. Callers hold mu.
func (s *Store) writeLocked() error {
	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return apperrors.StoreIO(err, "encode store")
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return apperrors.StoreIO(err, "create temporary store file")
	}

	if _, err := file.Write(payload); err != nil {
		file.Close()
		os.Remove(tempPath)
		return apperrors.StoreIO(err, "write temporary store file")
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return apperrors.StoreIO(err, "sync temporary store file")
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return apperrors.StoreIO(err, "close temporary store file")
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return apperrors.StoreIO(err, "replace store file")
	}

	s.logger.DebugWithFields("Store saved", map[string]interface{}{"keys": len(s.data)})
	return nil
}
