package internal

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// ContactDirectory is the friend list the router resolves senders against
type ContactDirectory struct {
	mu       sync.RWMutex
	contacts []Contact
}

// NewContactDirectory creates a directory holding contacts
func NewContactDirectory(contacts []Contact) *ContactDirectory {
	d := &ContactDirectory{}
	d.Replace(contacts)
	return d
}

// Replace swaps the whole friend list
func (d *ContactDirectory) Replace(contacts []Contact) {
	cp := make([]Contact, len(contacts))
	copy(cp, contacts)

	d.mu.Lock()
	d.contacts = cp
	d.mu.Unlock()
}

// Lookup finds a contact by user id
func (d *ContactDirectory) Lookup(id int64) (Contact, bool) {
	if d == nil {
		return Contact{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}

// All returns a copy of the friend list, in the order it was fetched
func (d *ContactDirectory) All() []Contact {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := make([]Contact, len(d.contacts))
	copy(cp, d.contacts)
	return cp
}

// Len returns the number of contacts
func (d *ContactDirectory) Len() int {
	if d == nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.contacts)
}

// Match returns the contacts whose first and last names both start with a match of the
// given patterns, ignoring case. Empty patterns match anything; a pattern that is not a
// valid regular expression is matched literally.
func (d *ContactDirectory) Match(firstPattern, lastPattern string) []Contact {
	first := compileNamePattern(firstPattern)
	last := compileNamePattern(lastPattern)

	var matches []Contact
	for _, c := range d.All() {
		if first.MatchString(c.FirstName) && last.MatchString(c.LastName) {
			matches = append(matches, c)
		}
	}
	LogDebug("found %d suggestion(s) for %q %q", len(matches), firstPattern, lastPattern)
	return matches
}

func compileNamePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		pattern = ".+"
	}
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
	if err != nil {
		LogDebug("invalid name pattern %q, matching literally: %v", pattern, err)
		re = regexp.MustCompile("(?i)^" + regexp.QuoteMeta(pattern))
	}
	return re
}

// Suggestions returns at most limit contacts; limit <= 0 means no limit
func Suggestions(contacts []Contact, limit int) []Contact {
	if limit <= 0 || len(contacts) <= limit {
		return contacts
	}
	return contacts[:limit]
}

// ContactLoader fills a ContactDirectory from the API, falling back on the YAML cache
type ContactLoader struct {
	source FriendSource
	cache  *ContactCache
	ttl    time.Duration
}

// NewContactLoader creates a loader. cache may be nil.
func NewContactLoader(source FriendSource, cache *ContactCache, ttl time.Duration) *ContactLoader {
	return &ContactLoader{source: source, cache: cache, ttl: ttl}
}

// Load fetches the friend list. A fresh cache is used without calling the API unless
// force is set; a failed fetch falls back on whatever the cache holds.
func (l *ContactLoader) Load(ctx context.Context, force bool) ([]Contact, error) {
	if !force && l.cache != nil && l.ttl > 0 && l.cache.IsCacheValid(l.ttl) {
		contacts, err := l.cache.Load()
		if err == nil {
			LogDebug("using %d cached contact(s)", len(contacts))
			return contacts, nil
		}
		LogDebug("contact cache unreadable: %v", err)
	}

	contacts, err := l.source.GetFriends(ctx)
	if err != nil {
		callErr := &RemoteCallError{Method: "friends.get", Err: err}
		if l.cache == nil {
			return nil, callErr
		}
		cached, cacheErr := l.cache.Load()
		if cacheErr != nil {
			return nil, callErr
		}
		LogWarn("unable to get a list of friends, using %d cached contact(s): %v", len(cached), err)
		return cached, nil
	}

	if l.cache != nil {
		if err := l.cache.Save(contacts); err != nil {
			LogWarn("failed to cache contacts: %v", err)
		}
	}
	return contacts, nil
}

// Refresh loads contacts into dir and returns how many were loaded
func (l *ContactLoader) Refresh(ctx context.Context, dir *ContactDirectory, force bool) (int, error) {
	contacts, err := l.Load(ctx, force)
	if err != nil {
		return 0, fmt.Errorf("failed to load contacts: %w", err)
	}
	dir.Replace(contacts)
	return len(contacts), nil
}
