// Package kvstore provides the string key-value stores backing local state:
// a persistent SQLite-backed store and a volatile per-session store.
package kvstore

// Store is a flat string key-value store.
// Get reports ok=false for a missing key rather than an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
