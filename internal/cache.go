package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const contactCacheVersion = "1.0"

// ContactCache keeps the last fetched friend list on disk
type ContactCache struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	CacheVersion string    `yaml:"cache_version"`
	FetchedAt    time.Time `yaml:"fetched_at"`
	Count        int       `yaml:"count"`
}

// ContactIndex is the YAML document written to contacts.yaml
type ContactIndex struct {
	Contacts []Contact     `yaml:"contacts"`
	Metadata CacheMetadata `yaml:"metadata"`
}

// NewContactCache creates a new contact cache rooted at cacheDir
func NewContactCache(cacheDir string) *ContactCache {
	return &ContactCache{
		cacheDir: cacheDir,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (cc *ContactCache) EnsureCacheDir() error {
	return os.MkdirAll(cc.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (cc *ContactCache) GetCacheDir() string {
	return cc.cacheDir
}

// GetIndexPath returns the path to the contacts YAML file
func (cc *ContactCache) GetIndexPath() string {
	return filepath.Join(cc.cacheDir, "contacts.yaml")
}

// IsCacheValid reports whether the cache exists, has the current version and is younger than ttl
func (cc *ContactCache) IsCacheValid(ttl time.Duration) bool {
	index, err := cc.LoadIndex()
	if err != nil {
		return false
	}
	if index.Metadata.CacheVersion != contactCacheVersion {
		return false
	}
	return time.Since(index.Metadata.FetchedAt) < ttl
}

// LoadIndex loads the contact index
func (cc *ContactCache) LoadIndex() (*ContactIndex, error) {
	path := cc.GetIndexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	var index ContactIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, &StorageError{Path: path, Op: "decode", Err: fmt.Errorf("failed to unmarshal index: %w", err)}
	}

	return &index, nil
}

// SaveIndex saves the contact index
func (cc *ContactCache) SaveIndex(index *ContactIndex) error {
	if err := cc.EnsureCacheDir(); err != nil {
		return &StorageError{Path: cc.cacheDir, Op: "mkdir", Err: err}
	}

	path := cc.GetIndexPath()
	data, err := yaml.Marshal(index)
	if err != nil {
		return &StorageError{Path: path, Op: "encode", Err: fmt.Errorf("failed to marshal index: %w", err)}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// Load returns the cached contacts
func (cc *ContactCache) Load() ([]Contact, error) {
	index, err := cc.LoadIndex()
	if err != nil {
		return nil, err
	}
	return index.Contacts, nil
}

// Save replaces the cached contacts
func (cc *ContactCache) Save(contacts []Contact) error {
	return cc.SaveIndex(&ContactIndex{
		Contacts: contacts,
		Metadata: CacheMetadata{
			CacheVersion: contactCacheVersion,
			FetchedAt:    time.Now(),
			Count:        len(contacts),
		},
	})
}

// ClearCache clears the cache
func (cc *ContactCache) ClearCache() error {
	if err := os.Remove(cc.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
