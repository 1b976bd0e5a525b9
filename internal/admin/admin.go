package admin

import (
	"sync"
)

var (
	mu            sync.RWMutex
	staticAdmins  = make(map[int64]struct{})
	dynamicSource func(userID int64) bool
)

// Init installs the static allow-list from configuration.
func Init(ids []int64) {
	mu.Lock()
	defer mu.Unlock()
	staticAdmins = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		staticAdmins[id] = struct{}{}
	}
}

// SetDynamicSource plugs in an additional admin lookup merged with the
// static list.
func SetDynamicSource(fn func(userID int64) bool) {
	mu.Lock()
	defer mu.Unlock()
	dynamicSource = fn
}

func IsAdmin(userID int64) bool {
	mu.RLock()
	defer mu.RUnlock()
	if _, ok := staticAdmins[userID]; ok {
		return true
	}
	return dynamicSource != nil && dynamicSource(userID)
}
