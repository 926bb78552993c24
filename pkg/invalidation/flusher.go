// Package invalidation triggers tag flushes of the response cache from
// outside the request cycle: content publication, a Redis channel and an
// HTTP purge endpoint.
package invalidation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/cover/pkg/cache"
)

// NodeControllerObjectName is the controller rendering published content
// nodes. Its entries are flushed whenever any node is published.
const NodeControllerObjectName = `TYPO3\Neos\Controller\Frontend\NodeController`

// NodeTagPrefix prefixes the tag of entries rendering a single node.
const NodeTagPrefix = "node-"

// TagFlusher drops cache entries by tag. *cache.Manager implements it
// for both of its stores.
type TagFlusher interface {
	FlushByTag(ctx context.Context, tag string) (int, error)
}

// NodeTag returns the tag of entries rendering nodeID.
func NodeTag(nodeID string) string {
	return NodeTagPrefix + nodeID
}

// Flusher flushes tags and reports what it did.
type Flusher struct {
	target TagFlusher
	logger zerolog.Logger
}

// NewFlusher creates a flusher. It panics if target is nil.
func NewFlusher(target TagFlusher, logger zerolog.Logger) *Flusher {
	if target == nil {
		panic("invalidation: flush target is required")
	}
	return &Flusher{target: target, logger: logger}
}

// Flush drops the entries of every tag and returns the number of removed
// store keys. It stops at the first failing tag.
func (f *Flusher) Flush(ctx context.Context, source string, tags ...string) (int, error) {
	total := 0
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		n, err := f.target.FlushByTag(ctx, tag)
		if err != nil {
			InvalidationErrors.WithLabelValues(source).Inc()
			return total, fmt.Errorf("flush tag %q: %w", tag, err)
		}
		total += n
		Invalidations.WithLabelValues(source).Inc()

		f.logger.Info().
			Str("source", source).
			Str("tag", tag).
			Int("removed", n).
			Msg("Flushed cache tag")
	}
	return total, nil
}

// NodePublished flushes the node controller's entries and those tagged with
// nodeID.
func (f *Flusher) NodePublished(ctx context.Context, nodeID string) (int, error) {
	tags := []string{cache.ControllerTag(NodeControllerObjectName)}
	if nodeID != "" {
		tags = append(tags, NodeTag(nodeID))
	}
	return f.Flush(ctx, SourcePublish, tags...)
}
