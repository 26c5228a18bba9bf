// Package memory implements the domain store interfaces on top of a flat
// keyed byte map. It is the storage used by tests and the dev mode, and the
// model the persistent stores follow: every entity lives under one
// deterministic key, values are JSON, and key construction is centralized in
// keys.go so logical names can never collide.
package memory

import (
	"sort"
	"strings"
	"sync"
)

// KV is a concurrency-safe flat key/value map with prefix scans.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKV returns an empty map.
func NewKV() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns the value stored under key, or false.
func (kv *KV) Get(key string) ([]byte, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (kv *KV) Set(key string, value []byte) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
}

// Remove deletes key if present.
func (kv *KV) Remove(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
}

// Scan returns the values of every key with the given prefix, ordered by
// key.
func (kv *KV) Scan(prefix string) [][]byte {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	keys := make([]string, 0)
	for k := range kv.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv.data[k])
	}
	return out
}

// Len reports the number of stored keys.
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.data)
}
