package cache

import (
	"net/http"
	"time"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// ResolveTTL derives the lifetime of resp.
//
// Priority: max-age, then s-maxage, then the last Expires header when it
// lies strictly after now (truncated to whole seconds), then defaultTTL.
// Negative directive values resolve to zero.
func ResolveTTL(resp *mvc.Response, now time.Time, defaultTTL time.Duration) time.Duration {
	d := ParseCacheControl(resp.Header)

	if seconds, ok := d.Seconds("max-age"); ok {
		return secondsToTTL(seconds)
	}
	if seconds, ok := d.Seconds("s-maxage"); ok {
		return secondsToTTL(seconds)
	}

	if values := resp.Header.Values("Expires"); len(values) > 0 {
		// Only the last Expires header is considered.
		if expires, err := http.ParseTime(values[len(values)-1]); err == nil && expires.After(now) {
			return expires.Sub(now).Truncate(time.Second)
		}
	}

	return defaultTTL
}

func secondsToTTL(seconds int64) time.Duration {
	if seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
