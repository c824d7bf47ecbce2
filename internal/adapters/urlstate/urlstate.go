// Package urlstate adapts a URL query string to the board session's
// state interface. Replace rewrites the canonical query in place, the
// way the web client rewrites its address bar without navigating.
package urlstate

import (
	"net/url"
	"sync"
)

// QueryState implements ports.QueryState over url.Values.
type QueryState struct {
	mu     sync.RWMutex
	values url.Values
}

// New creates a QueryState from an initial query string. A parse
// failure yields an empty state rather than an error; a malformed URL
// carries no usable preferences.
func New(rawQuery string) *QueryState {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		values = url.Values{}
	}
	return &QueryState{values: values}
}

// Get returns the first value for key and whether the key is present.
func (q *QueryState) Get(key string) (string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.values.Has(key) {
		return "", false
	}
	return q.values.Get(key), true
}

// Values returns all values for key.
func (q *QueryState) Values(key string) []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.values[key]
}

// Replace swaps the whole query for the given ordered pairs.
func (q *QueryState) Replace(pairs [][2]string) {
	values := url.Values{}
	for _, pair := range pairs {
		values.Add(pair[0], pair[1])
	}
	q.mu.Lock()
	q.values = values
	q.mu.Unlock()
}

// Encode renders the current query string.
func (q *QueryState) Encode() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.values.Encode()
}
