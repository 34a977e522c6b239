package storybook

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// PreviewPathPrefix is the URL prefix under which previews are served.
const PreviewPathPrefix = "/api/previews/"

// Preview is the temporary image shown for a not-yet-submitted upload.
type Preview struct {
	MIMEType string
	Data     []byte
}

// PreviewRegistry holds previews until they are released. Entries that are
// never released expire after the TTL.
type PreviewRegistry struct {
	cache *cache.Cache
}

// NewPreviewRegistry creates a registry whose entries expire after ttl.
func NewPreviewRegistry(ttl time.Duration) *PreviewRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PreviewRegistry{cache: cache.New(ttl, ttl)}
}

// Register stores p under id and returns its URL.
func (r *PreviewRegistry) Register(id string, p Preview) string {
	r.cache.SetDefault(id, p)
	return PreviewPathPrefix + id
}

// Get returns the preview stored under id.
func (r *PreviewRegistry) Get(id string) (Preview, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return Preview{}, false
	}
	return v.(Preview), true
}

// Release drops the preview stored under id.
func (r *PreviewRegistry) Release(id string) {
	if id != "" {
		r.cache.Delete(id)
	}
}

// Len returns the number of live previews.
func (r *PreviewRegistry) Len() int {
	return r.cache.ItemCount()
}
