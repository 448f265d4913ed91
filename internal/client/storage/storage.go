// Package storage persists the active credential and the list of users
// registered from this client. Values are sealed before they reach the
// key-value backend.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// KV is the durable key-value abstraction the credential store sits on.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open opens the named backend rooted at dir.
func Open(backend, dir string) (KV, error) {
	switch backend {
	case "file", "":
		return OpenFileKV(filepath.Join(dir, storageFile))
	case "badger":
		return OpenBadgerKV(filepath.Join(dir, "badger"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

const storageFile = "chemora.json"

// FileKV keeps all entries in one JSON document that is rewritten on
// every change.
type FileKV struct {
	path    string
	mu      sync.Mutex
	Entries map[string][]byte `json:"entries"`
}

// OpenFileKV loads the document at path; a missing file is an empty store.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, Entries: map[string][]byte{}}
	if err := kv.load(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (kv *FileKV) load() error {
	f, err := os.Open(kv.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(kv); err != nil {
		return fmt.Errorf("decode %s: %w", kv.path, err)
	}
	if kv.Entries == nil {
		kv.Entries = map[string][]byte{}
	}
	return nil
}

func (kv *FileKV) save() error {
	if err := os.MkdirAll(filepath.Dir(kv.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(kv.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	err = json.NewEncoder(f).Encode(kv)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", kv.path, err)
	}
	return nil
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (kv *FileKV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.Entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value under key and rewrites the document before returning.
// The in-memory entry is kept even when the write fails.
func (kv *FileKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	kv.Entries[key] = v
	return kv.save()
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *FileKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.Entries[key]; !ok {
		return nil
	}
	delete(kv.Entries, key)
	return kv.save()
}

// Close is a no-op; every change is already on disk.
func (kv *FileKV) Close() error { return nil }
