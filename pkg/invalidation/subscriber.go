package invalidation

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis channel carrying invalidation messages.
const DefaultChannel = "cover:invalidate"

// Subscriber flushes the tags published on a Redis channel. A message
// payload is one tag, or several separated by whitespace.
type Subscriber struct {
	redis   *redis.Client
	channel string
	flusher *Flusher
	logger  zerolog.Logger
}

// NewSubscriber creates a subscriber. An empty channel selects
// DefaultChannel. It panics if redisClient or flusher is nil.
func NewSubscriber(redisClient *redis.Client, channel string, flusher *Flusher, logger zerolog.Logger) *Subscriber {
	if redisClient == nil {
		panic("invalidation: redis client is required")
	}
	if flusher == nil {
		panic("invalidation: flusher is required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{
		redis:   redisClient,
		channel: channel,
		flusher: flusher,
		logger:  logger,
	}
}

// Run subscribes and flushes received tags until ctx is done. It returns
// nil on cancellation and an error if the subscription cannot be set up.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.redis.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	s.logger.Info().Str("channel", s.channel).Msg("Listening for cache invalidations")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	tags := strings.Fields(payload)
	if len(tags) == 0 {
		s.logger.Warn().Str("channel", s.channel).Msg("Ignoring empty invalidation message")
		return
	}

	if _, err := s.flusher.Flush(ctx, SourceChannel, tags...); err != nil {
		s.logger.Warn().
			Err(err).
			Str("channel", s.channel).
			Strs("tags", tags).
			Msg("Failed to apply invalidation message")
	}
}

// Publish sends tags to the subscribers of channel. An empty channel selects
// DefaultChannel.
func Publish(ctx context.Context, redisClient *redis.Client, channel string, tags ...string) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if err := redisClient.Publish(ctx, channel, strings.Join(tags, " ")).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}
