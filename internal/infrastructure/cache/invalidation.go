package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"salescycle/internal/core/id"
	"salescycle/pkg/logger"
)

// DeliveryChangedChannel is notified with a delivery id whenever another
// writer (legacy application, manual fix) changes a delivery row.
const DeliveryChangedChannel = "delivery_changed"

// Invalidator drops cached delivery views on PostgreSQL NOTIFY.
type Invalidator struct {
	pool    *pgxpool.Pool
	display *DeliveryDisplay

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewInvalidator creates an invalidator for display.
func NewInvalidator(pool *pgxpool.Pool, display *DeliveryDisplay) *Invalidator {
	return &Invalidator{pool: pool, display: display}
}

// Start begins listening in the background.
func (i *Invalidator) Start(ctx context.Context) {
	i.lifecycleMu.Lock()
	defer i.lifecycleMu.Unlock()
	if i.started {
		return
	}
	i.ctx, i.cancel = context.WithCancel(ctx)
	i.started = true

	i.wg.Add(1)
	go i.listenLoop()
	logger.Info(i.ctx, "delivery display invalidation started")
}

// Stop ends the listener and waits for it.
func (i *Invalidator) Stop() {
	i.lifecycleMu.Lock()
	if !i.started {
		i.lifecycleMu.Unlock()
		return
	}
	cancel := i.cancel
	i.started = false
	i.cancel = nil
	i.lifecycleMu.Unlock()

	cancel()
	i.wg.Wait()
}

func (i *Invalidator) listenLoop() {
	defer i.wg.Done()

	for i.ctx.Err() == nil {
		conn, err := i.pool.Acquire(i.ctx)
		if err != nil {
			logger.Error(i.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(i.ctx, "LISTEN "+DeliveryChangedChannel); err != nil {
			logger.Error(i.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		i.waitForNotifications(conn)
		conn.Release()
	}
}

func (i *Invalidator) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(i.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if i.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				// idle timeout
				continue
			}
			logger.Warn(i.ctx, "notification wait failed, reconnecting", "error", err)
			return
		}

		i.handle(n.Payload)
	}
}

func (i *Invalidator) handle(payload string) {
	docID, err := id.Parse(strings.TrimSpace(payload))
	if err != nil {
		logger.Warn(i.ctx, "ignoring malformed delivery notification", "payload", payload)
		return
	}
	i.display.Invalidate(docID)
	logger.Debug(i.ctx, "delivery display invalidated", "delivery_id", docID.String())
}
