package shelf

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache memoises assembled windows. Fetch returns the cached window for
// key or runs compute and stores its result for ttl. Implementations that
// cannot reach their backing store should fall back to compute.
type Cache interface {
	Fetch(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (Window, error)) (Window, error)
}

// cacheKeyVersion is bumped whenever the window layout changes.
const cacheKeyVersion = "v1"

// cacheKey normalises a request into a cache key, or "" when the request
// has no stable identity to key on.
func cacheKey(req Request) string {
	var origin string
	switch {
	case req.originID() != "":
		origin = "id:" + req.originID()
	case req.Origin != nil && req.Origin.Shelfkey() != "":
		origin = "key:" + strings.TrimRight(req.Origin.Shelfkey(), " ")
	case req.CallNumber.Valid():
		origin = "cn:" + strings.TrimRight(req.CallNumber.Shelfkey(), " ")
	default:
		return ""
	}
	return fmt.Sprintf("window/%s/%s/%d/%d/%s", cacheKeyVersion, origin, req.Width, req.Page, req.Offset)
}
