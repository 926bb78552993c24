package cache

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Sternrassler/cover/pkg/mvc"
)

const (
	// HeaderCache is the response header reporting "hit" or "miss".
	HeaderCache = "X-Cover-Cache"

	// HeaderCacheIdentifier is the request header carrying the fingerprint
	// computed before dispatch.
	HeaderCacheIdentifier = mvc.HeaderCacheIdentifier
)

// secondSeed seeds the second half of the 128-bit digest.
const secondSeed = 0x9E3779B97F4A7C15

// negotiationHeaders always participate in the fingerprint.
var negotiationHeaders = []string{"Accept", "Accept-Encoding", "Accept-Language"}

// Fingerprinter derives request fingerprints.
type Fingerprinter struct {
	environment string
	headers     []string
}

// NewFingerprinter creates a fingerprinter for the given environment context
// (e.g. "Production"). varyHeaders extend the content negotiation headers
// that participate in the fingerprint.
func NewFingerprinter(environment string, varyHeaders ...string) *Fingerprinter {
	seen := make(map[string]bool)
	headers := make([]string, 0, len(negotiationHeaders)+len(varyHeaders))
	for _, h := range append(append([]string{}, negotiationHeaders...), varyHeaders...) {
		h = http.CanonicalHeaderKey(strings.TrimSpace(h))
		if h == "" || seen[h] || h == HeaderCacheIdentifier {
			continue
		}
		seen[h] = true
		headers = append(headers, h)
	}
	sort.Strings(headers)

	return &Fingerprinter{
		environment: environment,
		headers:     headers,
	}
}

// Fingerprint returns the cache identifier for req.
//
// With preferHeader set and an identifier already attached to the request,
// that identifier is returned verbatim. Otherwise the identifier is a
// 32-character hex digest of the request identity, the started session id
// and the environment context.
func (f *Fingerprinter) Fingerprint(req *mvc.Request, session *mvc.Session, preferHeader bool) string {
	if preferHeader {
		if id := req.GetHeader(HeaderCacheIdentifier); id != "" {
			return id
		}
	}

	var b strings.Builder
	f.serialize(&b, req)
	if session.IsStarted() {
		b.WriteString("-")
		b.WriteString(session.ID)
	}
	b.WriteString("-")
	b.WriteString(f.environment)

	return digest(b.String())
}

// serialize writes every request field that can change the response. The
// dispatched flag is written as a constant so that it never affects the
// result.
func (f *Fingerprinter) serialize(b *strings.Builder, req *mvc.Request) {
	field(b, "method", strings.ToUpper(req.Method))
	field(b, "scheme", strings.ToLower(req.Scheme))
	field(b, "host", strings.ToLower(req.Host))
	field(b, "path", req.Path)
	field(b, "format", req.Format)
	field(b, "controller", req.ControllerObjectName)
	field(b, "action", req.ControllerActionName)
	field(b, "dispatched", "false")

	for _, key := range sortedKeys(req.Query) {
		for _, value := range req.Query[key] {
			field(b, "query."+key, value)
		}
	}

	argKeys := make([]string, 0, len(req.Arguments))
	for key := range req.Arguments {
		argKeys = append(argKeys, key)
	}
	sort.Strings(argKeys)
	for _, key := range argKeys {
		field(b, "arg."+key, req.Arguments[key])
	}

	for _, name := range f.headers {
		for _, value := range req.Header.Values(name) {
			field(b, "header."+name, value)
		}
	}
}

// field writes a length-prefixed name/value pair so that no two distinct
// field sequences serialize to the same string.
func field(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(value)))
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte(';')
}

func sortedKeys(values map[string][]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func digest(s string) string {
	d := xxhash.NewWithSeed(secondSeed)
	d.WriteString(s)
	return fmt.Sprintf("%016x%016x", xxhash.Sum64String(s), d.Sum64())
}
