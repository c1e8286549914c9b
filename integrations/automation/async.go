package automation

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/sirupsen/logrus"
)

// AsyncDispatcher hands triggers to a worker pool so webhook responses do not wait on the
// workflow engine. Triggers for the same (tenant, phone) are delivered in order.
type AsyncDispatcher struct {
	inner   *Dispatcher
	pool    *msgworker.Pool
	timeout time.Duration
}

func NewAsyncDispatcher(inner *Dispatcher, pool *msgworker.Pool, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AsyncDispatcher{inner: inner, pool: pool, timeout: timeout}
}

// Dispatch enqueues the trigger; the request context is not carried over since the
// webhook response is sent before delivery.
func (a *AsyncDispatcher) Dispatch(_ context.Context, trigger Trigger) bool {
	accepted := a.pool.TryDispatch(msgworker.Job{
		Key: trigger.TenantID + "|" + trigger.Phone,
		Handler: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			a.inner.Dispatch(ctx, trigger)
			return nil
		},
	})
	if !accepted {
		logrus.WithField("tenant_id", trigger.TenantID).Warn("[AUTOMATION] dispatch queue full, trigger dropped")
	}
	return accepted
}

func (a *AsyncDispatcher) Stats() msgworker.PoolStats {
	return a.pool.Stats()
}
