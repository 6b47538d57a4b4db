// internal/publisher/slug.go
package publisher

import (
	"fmt"
	"strings"
	"time"
)

const maxSlugLen = 40

// Slug derives a URL-safe permlink from a post title: lowercased, non
// alphanumerics collapsed to single hyphens, truncated, and suffixed with
// the unix timestamp for uniqueness. The suffix is a strategy, not a
// guarantee; the publish loop handles relay-reported collisions.
func Slug(title string, t time.Time) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "post"
	}
	return fmt.Sprintf("%s-%d", slug, t.Unix())
}
