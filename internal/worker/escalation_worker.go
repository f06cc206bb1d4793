package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/service"
)

const tickLockKey = "sla:escalation:tick"

// EscalationWorker drives the escalation engine on a recurring schedule.
// The engine itself holds no background state; the worker just hands it
// clock values. A Redis lock keeps multiple replicas from ticking at once;
// since ticks are idempotent the lock is an optimization, not a correctness
// requirement.
type EscalationWorker struct {
	engine     *service.EscalationService
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.SlaConfig
	cron       *cron.Cron
	instanceID string
}

// NewEscalationWorker constructs the worker. The redis client may be nil,
// in which case every scheduled tick runs unconditionally.
func NewEscalationWorker(engine *service.EscalationService, redisClient *redis.Client, logger *zap.Logger, cfg config.SlaConfig) *EscalationWorker {
	return &EscalationWorker{
		engine:     engine,
		redis:      redisClient,
		logger:     logger,
		cfg:        cfg,
		cron:       cron.New(),
		instanceID: uuid.NewString(),
	}
}

// Start registers the tick schedule and launches the cron loop.
func (w *EscalationWorker) Start() error {
	if _, err := w.cron.AddFunc(w.cfg.TickSchedule, w.runScheduledTick); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("escalation worker started", zap.String("schedule", w.cfg.TickSchedule))
	return nil
}

// Stop halts the schedule and blocks until an in-flight tick finishes its
// current work; a running tick is never aborted mid-ticket.
func (w *EscalationWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("escalation worker stopped")
}

func (w *EscalationWorker) runScheduledTick() {
	ctx := context.Background()
	if !w.acquireLock(ctx) {
		w.logger.Debug("tick lock held elsewhere, skipping")
		return
	}
	defer w.releaseLock(ctx)

	if _, err := w.engine.RunTick(ctx, time.Now()); err != nil {
		w.logger.Error("escalation tick failed", zap.Error(err))
	}
}

func (w *EscalationWorker) acquireLock(ctx context.Context) bool {
	if w.redis == nil {
		return true
	}
	ok, err := w.redis.SetNX(ctx, tickLockKey, w.instanceID, w.cfg.TickLockTTL()).Result()
	if err != nil {
		// Redis being down must not stop SLA tracking.
		w.logger.Warn("tick lock unavailable, running unlocked", zap.Error(err))
		return true
	}
	return ok
}

// releaseScript deletes the lock only while this instance still holds it, so
// a replica that acquired the key after TTL expiry never loses its lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (w *EscalationWorker) releaseLock(ctx context.Context) {
	if w.redis == nil {
		return
	}
	if err := releaseScript.Run(ctx, w.redis, []string{tickLockKey}, w.instanceID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to release tick lock", zap.Error(err))
	}
}
