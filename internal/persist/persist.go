// Package persist defines the key-value persistence contract the
// Parameter Bridge saves through. Only the interface and key scheme are
// specified here; a concrete backend (disk, cloud KV, whatever the host
// process wires up) is out of scope and supplied by the caller. SaveFunc
// additionally owns the debounce policy every Bridge write goes through,
// so a backend never sees more than one write per key per window.
package persist

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the minimal key-value contract a preset persistence backend
// must satisfy. SaveFunc already coalesces rapid writes before they reach
// Save, so a backend need not debounce on its own; the engine never
// depends on Save completing before it returns.
type Store interface {
	Save(key string, value float32) error
	Load(key string) (float32, bool, error)
}

// saveInterval is the minimum time between two Save calls for the same
// key, per the persisted-state coalescing policy: a UI control dragged
// continuously must not turn into one disk write per audio callback.
const saveInterval = 100 * time.Millisecond

// NewPresetID generates a fresh preset identifier for use in Key. Preset
// IDs are opaque to the engine beyond their use as a key component.
func NewPresetID() string {
	return uuid.NewString()
}

// Key builds the "preset:<uuid>:<param_id>" key a Store entry is stored
// under, per the persisted state layout.
func Key(presetID, paramID string) string {
	return "preset:" + presetID + ":" + paramID
}

// SaveFunc adapts a Store and preset ID into a paramspec.SaveFunc-shaped
// closure: fire-and-forget, errors are swallowed since persistence is
// optional and must never block the caller. Writes are debounced per key
// (one Save per (presetID, param) per saveInterval): a key's first write
// always goes through immediately, and further writes to the same key
// within the window are dropped rather than queued, since the bridge only
// ever calls this with the latest value and an older value reaching the
// store late would be wrong, not just redundant.
func SaveFunc(store Store, presetID string) func(id string, u float64) {
	if store == nil {
		return nil
	}
	var mu sync.Mutex
	last := make(map[string]time.Time)
	return func(id string, u float64) {
		key := Key(presetID, id)
		now := time.Now()
		mu.Lock()
		if t, ok := last[key]; ok && now.Sub(t) < saveInterval {
			mu.Unlock()
			return
		}
		last[key] = now
		mu.Unlock()
		_ = store.Save(key, float32(u))
	}
}
