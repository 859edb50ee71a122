package storage

import (
	"context"
	"sync"
	"time"

	"PPCollab/logger"
	"PPCollab/service/chat"
	"PPCollab/tools/errs"
	"PPCollab/tools/safe"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// presence key: im:presence:<user>
// Value: gateway_id, TTL controls the online validity period
func presenceKey(user string) string { return "im:presence:" + user }

// presenceKV is the part of Redis the mirror touches.
type presenceKV interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
}

type redisKV struct{ rdb *redis.Client }

func (r redisKV) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, val, ttl).Err()
}

func (r redisKV) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func (r redisKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.Expire(ctx, key, ttl).Result()
}

func (r redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

type PresenceConfig struct {
	GatewayID string
	TTL       time.Duration // 默认 60s
	Refresh   time.Duration // 续期周期，默认 TTL/3
	Buffer    int           // 事件队列长度，默认 1024
}

func (c *PresenceConfig) norm() {
	if c.TTL <= 0 {
		c.TTL = 60 * time.Second
	}
	if c.Refresh <= 0 {
		c.Refresh = c.TTL / 3
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
}

// RedisPresence mirrors registry presence into Redis so other services can
// ask which gateway a user sits on. The gateway never reads it back.
type RedisPresence struct {
	kv   presenceKV
	conf PresenceConfig
	ch   chan chat.PresenceEvent

	mu     sync.Mutex
	online map[string]struct{}
	live   func() []string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	log      *zap.Logger
}

func NewRedisPresence(rdb *redis.Client, conf PresenceConfig) *RedisPresence {
	safe.MustNotNil(rdb, "redis client")
	return newPresence(redisKV{rdb: rdb}, conf)
}

func newPresence(kv presenceKV, conf PresenceConfig) *RedisPresence {
	conf.norm()
	return &RedisPresence{
		kv:     kv,
		conf:   conf,
		ch:     make(chan chat.PresenceEvent, conf.Buffer),
		online: make(map[string]struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		log:    logger.Named("presence"),
	}
}

// Track makes every refresh reconcile against src, normally
// ConnManager.OnlineUsers. Without it a dropped event is never repaired.
func (p *RedisPresence) Track(src func() []string) {
	p.mu.Lock()
	p.live = src
	p.mu.Unlock()
}

// Publish implements chat.PresenceSink. It never blocks; when the queue is
// full the event is dropped and the next refresh of a tracked registry
// repairs the key.
func (p *RedisPresence) Publish(ev chat.PresenceEvent) {
	select {
	case p.ch <- ev:
	default:
		p.log.Warn("presence queue full, drop", zap.String("user", ev.UserID), zap.Bool("online", ev.Online))
	}
}

// Start runs the worker until Stop.
func (p *RedisPresence) Start() {
	safe.Go("redis-presence", p.loop)
}

// Stop drains queued events and waits for the worker.
func (p *RedisPresence) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *RedisPresence) loop() {
	defer close(p.done)
	t := time.NewTicker(p.conf.Refresh)
	defer t.Stop()
	for {
		select {
		case ev := <-p.ch:
			p.apply(ev)
		case <-t.C:
			p.refresh()
		case <-p.stop:
			for {
				select {
				case ev := <-p.ch:
					p.apply(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *RedisPresence) apply(ev chat.PresenceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := presenceKey(ev.UserID)
	p.mu.Lock()
	if ev.Online {
		p.online[ev.UserID] = struct{}{}
	} else {
		delete(p.online, ev.UserID)
	}
	p.mu.Unlock()

	var err error
	if ev.Online {
		err = p.kv.Set(ctx, key, p.conf.GatewayID, p.conf.TTL)
	} else {
		err = p.kv.Del(ctx, key)
	}
	if err != nil {
		p.log.Warn("presence write failed", zap.String("key", key), zap.Bool("online", ev.Online), zap.Error(err))
	}
}

// refresh extends every mirrored key. With a tracked registry the mirror is
// first replaced by its snapshot: keys of users no longer live are deleted
// and live users missing from the mirror are written.
func (p *RedisPresence) refresh() {
	p.mu.Lock()
	src := p.live
	p.mu.Unlock()

	var stale []string
	var users []string
	if src != nil {
		snap := src()
		next := make(map[string]struct{}, len(snap))
		for _, u := range snap {
			next[u] = struct{}{}
		}
		p.mu.Lock()
		for u := range p.online {
			if _, ok := next[u]; !ok {
				stale = append(stale, u)
			}
		}
		p.online = next
		p.mu.Unlock()
		users = snap
	} else {
		p.mu.Lock()
		users = make([]string, 0, len(p.online))
		for u := range p.online {
			users = append(users, u)
		}
		p.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, u := range stale {
		if err := p.kv.Del(ctx, presenceKey(u)); err != nil {
			p.log.Debug("presence reconcile del failed", zap.String("user", u), zap.Error(err))
		}
	}
	for _, u := range users {
		ok, err := p.kv.Expire(ctx, presenceKey(u), p.conf.TTL)
		if err == nil && !ok {
			// key lost (eviction / flush): write it again
			err = p.kv.Set(ctx, presenceKey(u), p.conf.GatewayID, p.conf.TTL)
		}
		if err != nil {
			p.log.Debug("presence refresh failed", zap.String("user", u), zap.Error(err))
		}
	}
}

// Lookup reports which gateway holds userID, if any.
func (p *RedisPresence) Lookup(ctx context.Context, userID string) (gatewayID string, online bool, err error) {
	gatewayID, online, err = p.kv.Get(ctx, presenceKey(userID))
	if err != nil {
		return "", false, errs.WrapMsg(err, "presence lookup", "user", userID)
	}
	return gatewayID, online, nil
}
