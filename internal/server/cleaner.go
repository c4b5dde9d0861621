package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

// Cleaner periodically marks sessions stuck in running as failed. A redis
// lock keeps multiple replicas from reaping concurrently.
type Cleaner struct {
	Store  *store.Store
	Rdb    *redis.Client
	Cron   string
	MaxAge time.Duration
	Logger *log.Logger
	Stop   chan struct{}
}

const cleanerLockKey = "research:cleaner:lock"

func (cl *Cleaner) Start() {
	if cl.Logger == nil {
		cl.Logger = log.New(log.Writer(), "[CLEANER] ", log.LstdFlags)
	}
	expr, err := cronexpr.Parse(cl.Cron)
	if err != nil {
		cl.Logger.Printf("invalid cron %q, falling back to */10 * * * *: %v", cl.Cron, err)
		expr = cronexpr.MustParse("*/10 * * * *")
	}
	go func() {
		for {
			next := expr.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-cl.Stop:
				timer.Stop()
				return
			case <-timer.C:
				cl.tick()
			}
		}
	}()
}

func (cl *Cleaner) tick() {
	ctx := context.Background()
	if cl.Rdb != nil {
		ok, err := cl.Rdb.SetNX(ctx, cleanerLockKey, "1", 2*time.Minute).Result()
		if err != nil {
			cl.Logger.Printf("cleaner lock failed, skipping round: %v", err)
			return
		}
		if !ok {
			return
		}
		defer cl.Rdb.Del(ctx, cleanerLockKey)
	}
	maxAge := cl.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	n, err := cl.Store.ReapStale(ctx, maxAge)
	if err != nil {
		cl.Logger.Printf("stale session reap failed: %v", err)
		return
	}
	if n > 0 {
		cl.Logger.Printf("marked %d stale sessions as failed", n)
	}
}
