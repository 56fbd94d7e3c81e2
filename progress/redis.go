package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/lexgraph/log"
)

// RedisOptions configures NewRedis.
type RedisOptions struct {
	// Prefix is prepended to channel names. Defaults to "lexgraph:".
	Prefix string
	// Timeout bounds each publish. Defaults to one second.
	Timeout time.Duration
	Logger  log.Logger
}

// Redis publishes updates on a per-session pub/sub channel so that other
// processes can relay them.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	logger  log.Logger
}

// NewRedis creates a publisher over client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "lexgraph:"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	return &Redis{
		client:  client,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		logger:  log.OrDefault(opts.Logger),
	}
}

// Channel returns the channel updates for sessionID are published on.
func (r *Redis) Channel(sessionID string) string {
	return r.prefix + "progress:" + sessionID
}

// Notify implements Emitter. Failures are logged and swallowed.
func (r *Redis) Notify(ctx context.Context, sessionID, text string) {
	payload, err := json.Marshal(Event{SessionID: sessionID, Status: text, Time: time.Now().UTC()})
	if err != nil {
		r.logger.Warn("progress: encode event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.Channel(sessionID), payload).Err(); err != nil {
		r.logger.Warn("progress: publish to %s failed: %v", r.Channel(sessionID), err)
	}
}
