package cache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/cover/pkg/mvc"
)

// Directives holds parsed Cache-Control directives. Names are lower case;
// valueless directives map to "".
type Directives map[string]string

// ParseCacheControl parses every Cache-Control header value in h.
func ParseCacheControl(h http.Header) Directives {
	d := Directives{}
	for _, line := range h.Values("Cache-Control") {
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, _ := strings.Cut(part, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if _, exists := d[name]; exists {
				// first occurrence wins
				continue
			}
			d[name] = value
		}
	}
	return d
}

// Has reports whether the directive is present.
func (d Directives) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Seconds returns the delta-seconds value of a directive. ok is false when
// the directive is absent or its value is not an integer.
func (d Directives) Seconds(name string) (seconds int64, ok bool) {
	value, present := d[name]
	if !present {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (d Directives) forbidsCaching() bool {
	return d.Has("no-store") || d.Has("no-cache") || d.Has("private")
}

// RequestAllowsCaching reports whether req may be answered from the cache.
// A max-age or s-maxage below one second (or unparseable) disallows it.
func RequestAllowsCaching(req *mvc.Request) bool {
	d := ParseCacheControl(req.Header)
	if d.forbidsCaching() {
		return false
	}

	for _, name := range []string{"max-age", "s-maxage"} {
		if !d.Has(name) {
			continue
		}
		if seconds, ok := d.Seconds(name); !ok || seconds < 1 {
			return false
		}
	}
	return true
}

// ResponseCanBeCached reports whether resp may be stored.
func ResponseCanBeCached(resp *mvc.Response) bool {
	return !ParseCacheControl(resp.Header).forbidsCaching()
}
