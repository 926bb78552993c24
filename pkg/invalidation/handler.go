package invalidation

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/cache"
)

// PurgePath is where the purge handler is mounted by the proxy.
const PurgePath = "/_cover/flush"

// PurgeResult is the JSON body of a successful purge.
type PurgeResult struct {
	Tags    []string `json:"tags"`
	Removed int      `json:"removed"`
}

// PurgeHandler flushes tags over HTTP.
//
//	POST /_cover/flush?tag=node-42&tag=format%25json
//	POST /_cover/flush?node=42
//
// The node parameter runs NodePublished for the given node. Requests must
// carry "Authorization: Bearer <token>".
func PurgeHandler(flusher *Flusher, token string, logger zerolog.Logger) http.Handler {
	if token == "" {
		panic("purge token cannot be empty")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejected unauthorized purge")
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		query := r.URL.Query()
		tags := query["tag"]
		node := query.Get("node")
		if len(tags) == 0 && node == "" {
			http.Error(w, "tag or node parameter required", http.StatusBadRequest)
			return
		}

		result := PurgeResult{Tags: []string{}}

		if len(tags) > 0 {
			n, err := flusher.Flush(r.Context(), SourceHTTP, tags...)
			result.Removed += n
			if err != nil {
				logger.Error().Err(err).Strs("tags", tags).Msg("Purge failed")
				http.Error(w, "flush failed", http.StatusInternalServerError)
				return
			}
			result.Tags = append(result.Tags, tags...)
		}

		if node != "" {
			n, err := flusher.NodePublished(r.Context(), node)
			result.Removed += n
			if err != nil {
				logger.Error().Err(err).Str("node", node).Msg("Purge failed")
				http.Error(w, "flush failed", http.StatusInternalServerError)
				return
			}
			result.Tags = append(result.Tags, cache.ControllerTag(NodeControllerObjectName), NodeTag(node))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Warn().Err(err).Msg("Failed to write purge result")
		}
	})
}

func authorized(r *http.Request, token string) bool {
	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
