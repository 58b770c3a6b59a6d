package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/events"
)

const presenceKeyPrefix = "presence:online:"

// DefaultReconnectGrace is how long a disconnect waits before the online
// count drops, so a quick reconnect does not double count.
const DefaultReconnectGrace = 5 * time.Second

// PresenceConfig configures the presence counter.
type PresenceConfig struct {
	RedisClient    *redis.Client
	ReconnectGrace time.Duration
	Clock          clockwork.Clock
	// OnChange is invoked with the new count after every effective
	// increment or decrement.
	OnChange func(gameID uuid.UUID, count int64)
}

// Presence tracks the online count per game channel with atomic redis
// counters; read-modify-write is never used, so concurrent connects and
// disconnects cannot lose updates.
//
// Every increment is balanced by exactly one scheduled decrement: a player
// with several simultaneous connections stacks one pending grace timer per
// closed connection, and a reconnect cancels exactly one of them.
type Presence struct {
	client   *redis.Client
	clock    clockwork.Clock
	grace    time.Duration
	onChange func(gameID uuid.UUID, count int64)

	mu      sync.Mutex
	pending map[string][]clockwork.Timer
}

// NewPresence creates the presence tracker.
func NewPresence(cfg *PresenceConfig) (*Presence, error) {
	if cfg == nil || cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	grace := cfg.ReconnectGrace
	if grace <= 0 {
		grace = DefaultReconnectGrace
	}
	return &Presence{
		client:   cfg.RedisClient,
		clock:    clock,
		grace:    grace,
		onChange: cfg.OnChange,
		pending:  make(map[string][]clockwork.Timer),
	}, nil
}

func presenceKey(gameID uuid.UUID) string {
	return presenceKeyPrefix + gameID.String()
}

func graceKey(gameID, playerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", gameID, playerID)
}

// Connect counts the player in. A reconnect inside the grace window cancels
// one pending decrement instead of incrementing again.
func (p *Presence) Connect(ctx context.Context, gameID, playerID uuid.UUID) (int64, error) {
	key := graceKey(gameID, playerID)

	p.mu.Lock()
	if timers := p.pending[key]; len(timers) > 0 {
		timers[len(timers)-1].Stop()
		p.setPending(key, timers[:len(timers)-1])
		p.mu.Unlock()
		return p.Count(ctx, gameID)
	}
	p.mu.Unlock()

	count, err := p.client.Incr(ctx, presenceKey(gameID)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment presence: %w", err)
	}
	p.notify(gameID, count)
	return count, nil
}

// Disconnect schedules one decrement after the grace window. Abnormal and
// clean closes take the same path, so the count cannot leak.
func (p *Presence) Disconnect(ctx context.Context, gameID, playerID uuid.UUID) {
	key := graceKey(gameID, playerID)

	p.mu.Lock()
	var timer clockwork.Timer
	timer = p.clock.AfterFunc(p.grace, func() {
		p.mu.Lock()
		p.removePending(key, timer)
		p.mu.Unlock()
		p.decrement(gameID)
	})
	p.pending[key] = append(p.pending[key], timer)
	p.mu.Unlock()
}

// setPending and removePending require p.mu held.
func (p *Presence) setPending(key string, timers []clockwork.Timer) {
	if len(timers) == 0 {
		delete(p.pending, key)
		return
	}
	p.pending[key] = timers
}

func (p *Presence) removePending(key string, timer clockwork.Timer) {
	timers := p.pending[key]
	for i, t := range timers {
		if t == timer {
			p.setPending(key, append(timers[:i:i], timers[i+1:]...))
			return
		}
	}
}

func (p *Presence) decrement(gameID uuid.UUID) {
	ctx := context.Background()
	count, err := p.client.Decr(ctx, presenceKey(gameID)).Result()
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("decrement presence failed")
		return
	}
	if count < 0 {
		// A restart can orphan grace timers; clamp rather than undercount
		// forever.
		p.client.Set(ctx, presenceKey(gameID), 0, 0)
		count = 0
	}
	p.notify(gameID, count)
}

// Count returns the current online count for a game.
func (p *Presence) Count(ctx context.Context, gameID uuid.UUID) (int64, error) {
	count, err := p.client.Get(ctx, presenceKey(gameID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read presence: %w", err)
	}
	return count, nil
}

func (p *Presence) notify(gameID uuid.UUID, count int64) {
	if p.onChange != nil {
		p.onChange(gameID, count)
	}
}

// BroadcastOnChange returns an OnChange hook that publishes the new online
// count on the game's event subject, so every gateway replica fans the
// update out to its subscribers.
func BroadcastOnChange(publisher EventPublisher, clock clockwork.Clock) func(gameID uuid.UUID, count int64) {
	return func(gameID uuid.UUID, count int64) {
		event := events.New(gameID, events.TypePresenceChanged, events.PresenceChangedPayload{OnlineCount: count}, clock.Now().UTC())
		if err := publisher.Publish(context.Background(), event); err != nil {
			log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to publish presence change")
		}
	}
}
