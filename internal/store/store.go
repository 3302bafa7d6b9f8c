// Package store persists opaque JSON blobs under fixed keys.
// Backends: SQLite (default), bbolt and an in-memory map. When a durable backend
// cannot be opened, Open falls back to memory so the session keeps working.
package store

import (
	"errors"
	"strings"

	"github.com/comigor/nature-chat/internal/logger"
)

// Fixed, versionless keys, one per persisted concern.
const (
	KeyConversation = "conversation"
	KeySettings     = "settings"
	KeyPanel        = "side-panel-collapsed"
)

// ErrPersistence marks a storage read or write failure. It is never fatal: the
// in-memory state stays authoritative for the rest of the session.
var ErrPersistence = errors.New("persistence failure")

// Store is a key/value blob store.
type Store interface {
	// Get returns the blob stored under key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
	Close() error
}

// Open opens the backend named by driver ("sqlite", "bolt" or "memory").
func Open(driver, path string) Store {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", "sqlite":
		s, err = NewSQLite(path)
	case "bolt", "bbolt":
		s, err = NewBolt(path)
	case "memory":
		return NewMemory()
	default:
		logger.L.Warn("unknown storage driver; using in-memory store", "driver", driver)
		return NewMemory()
	}
	if err != nil {
		logger.L.Warn("storage open failed; using in-memory store", "driver", driver, "path", path, "error", err)
		return NewMemory()
	}
	logger.L.Debug("storage initialized", "driver", driver, "path", path)
	return s
}
