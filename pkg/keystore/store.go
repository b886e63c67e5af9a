// Package keystore keeps issuer verification keys and credential decryption
// keys on disk as JWK files, and resolves them by envelope key id.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/claim169/claim169-core/pkg/crypto"
)

// EnvPath overrides the default store location.
const EnvPath = "CLAIM169_KEYSTORE_PATH"

// Common errors returned by this package.
var (
	ErrKeyNotFound = errors.New("key not found in keystore")
	ErrInvalidKey  = errors.New("invalid key format")
)

// Store is a set of JWKs addressed by kid.
type Store interface {
	// Add stores a key, replacing any key with the same kid.
	Add(key jose.JSONWebKey) error

	// Get retrieves a key by kid.
	Get(kid string) (*jose.JSONWebKey, error)

	// List returns all keys ordered by kid.
	List() ([]jose.JSONWebKey, error)

	// Remove deletes a key by kid.
	Remove(kid string) error
}

// FileStore implements Store with one <kid>.jwk file per key.
// Default location: ~/.claim169/keys/
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// DefaultDir returns the default keystore directory.
func DefaultDir() string {
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claim169/keys"
	}
	return filepath.Join(home, ".claim169", "keys")
}

// NewFileStore opens the store in dir, creating it if needed. An empty dir
// selects DefaultDir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) keyPath(kid string) string {
	return filepath.Join(s.dir, sanitizeFilename(kid)+".jwk")
}

// Add stores a key. The key must carry a kid and be usable as a signature
// or AES-GCM key.
func (s *FileStore) Add(key jose.JSONWebKey) error {
	if key.KeyID == "" {
		return fmt.Errorf("%w: missing kid", ErrInvalidKey)
	}
	if _, err := crypto.AlgorithmForJWK(&key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.keyPath(key.KeyID), data, 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// AddFromJWKS stores every key of a JWKS.
func (s *FileStore) AddFromJWKS(set *jose.JSONWebKeySet) error {
	for _, key := range set.Keys {
		if err := s.Add(key); err != nil {
			return fmt.Errorf("failed to add key %s: %w", key.KeyID, err)
		}
	}
	return nil
}

// Get retrieves a key by kid.
func (s *FileStore) Get(kid string) (*jose.JSONWebKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.keyPath(kid))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse key: %w", err)
	}
	if key.KeyID != kid {
		// Two kids that sanitize to the same file name.
		return nil, ErrKeyNotFound
	}
	return &key, nil
}

// List returns all keys ordered by kid. Unreadable files are skipped.
func (s *FileStore) List() ([]jose.JSONWebKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory: %w", err)
	}

	var keys []jose.JSONWebKey
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jwk" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var key jose.JSONWebKey
		if err := json.Unmarshal(data, &key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeyID < keys[j].KeyID })
	return keys, nil
}

// Remove deletes a key by kid.
func (s *FileStore) Remove(kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyPath(kid)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	return nil
}

// Resolver returns a crypto.KeyResolver over s. Keys are read on each
// lookup, so changes to the store are seen by later decodes.
func Resolver(s Store) crypto.KeyResolver {
	return &resolver{store: s}
}

type resolver struct {
	store Store
}

// lookup returns the key for keyID, provided it is meant for alg.
func (r *resolver) lookup(alg crypto.Algorithm, keyID []byte) (*jose.JSONWebKey, error) {
	key, err := r.store.Get(string(keyID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: kid %q", crypto.ErrKeyNotFound, keyID)
	}
	if err != nil {
		return nil, err
	}
	keyAlg, err := crypto.AlgorithmForJWK(key)
	if err != nil {
		return nil, err
	}
	if keyAlg != alg {
		return nil, fmt.Errorf("%w: kid %q holds a %s key, envelope uses %s", crypto.ErrKeyNotFound, keyID, keyAlg, alg)
	}
	return key, nil
}

func (r *resolver) ResolveVerifier(alg crypto.Algorithm, keyID []byte) (crypto.SignatureVerifier, error) {
	key, err := r.lookup(alg, keyID)
	if err != nil {
		return nil, err
	}
	v, _, err := crypto.VerifierFromJWK(key)
	return v, err
}

func (r *resolver) ResolveDecryptor(alg crypto.Algorithm, keyID []byte) (crypto.Decryptor, error) {
	key, err := r.lookup(alg, keyID)
	if err != nil {
		return nil, err
	}
	d, _, err := crypto.DecryptorFromJWK(key)
	return d, err
}

// sanitizeFilename converts a kid to a safe filename.
func sanitizeFilename(kid string) string {
	safe := make([]byte, 0, len(kid))
	for _, c := range []byte(kid) {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			safe = append(safe, '_')
		default:
			safe = append(safe, c)
		}
	}
	if s := string(safe); s != "." && s != ".." {
		return s
	}
	return "_"
}
