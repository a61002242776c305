// Package domain holds the entities of the session pool, the repository
// contracts implemented by the storage adapters, and the sentinel errors
// shared across layers.
package domain
