package natsx

import (
	"context"
	"sync"
	"time"
)

// ----- 抽象存储 -----
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// ----- 内存实现（单进程） -----
type MemIdem struct {
	mu  sync.Mutex
	m   map[string]time.Time // key -> expireAt
	ttl time.Duration
	now func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemIdem starts a store with a background sweeper; call Stop to end it.
func NewMemIdem(defaultTTL time.Duration) *MemIdem {
	mi := newMemIdem(defaultTTL)
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-mi.stop:
				return
			case <-t.C:
				mi.sweep()
			}
		}
	}()
	return mi
}

func newMemIdem(defaultTTL time.Duration) *MemIdem {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &MemIdem{
		m:    make(map[string]time.Time),
		ttl:  defaultTTL,
		now:  time.Now,
		stop: make(chan struct{}),
	}
}

func (mi *MemIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil // 已见过
	}
	mi.m[key] = now.Add(ttl)
	return false, nil
}

func (mi *MemIdem) Stop() {
	mi.stopOnce.Do(func() { close(mi.stop) })
}

func (mi *MemIdem) sweep() {
	now := mi.now()
	mi.mu.Lock()
	for k, exp := range mi.m {
		if !exp.After(now) {
			delete(mi.m, k)
		}
	}
	mi.mu.Unlock()
}

func (mi *MemIdem) size() int {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.m)
}

// ----- 从消息头提取 msgID -----
func msgIDFromHeader(h map[string]string) string {
	// 标准头：Nats-Msg-Id；也兼容业务自定义 X-Msg-Id
	for _, k := range []string{"Nats-Msg-Id", "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ----- 幂等中间件 -----
// 用法：NewNatsxConsumer(client, NatsxIdemMiddleware(store, ttl))
func NatsxIdemMiddleware(store IdemStore, ttl time.Duration) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) error {
			seen, _ := store.SeenOnce(msg.DedupKey(), ttl)
			if seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
