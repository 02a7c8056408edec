package data

import (
	"context"
	"sync"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// NewCaptureLocker 创建扣款锁，未配置 Redis 时退化为进程内锁
func NewCaptureLocker(rs *redsync.Redsync, conf *biz.CreditConfig, logger log.Logger) biz.CaptureLocker {
	if rs == nil {
		return newLocalLocker()
	}
	return &redisLocker{
		rs:      rs,
		expiry:  conf.CaptureLockExpiry,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// redisLocker 基于 redsync 的分布式锁，多实例部署时保证同一订单只有一个扣款请求
type redisLocker struct {
	rs      *redsync.Redsync
	expiry  time.Duration
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// Acquire 只尝试一次，锁已被持有时立即返回 ErrCodeCaptureInProgress
func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockStartTime := time.Now()
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	err := mutex.TryLockContext(ctx)
	if l.metrics != nil {
		l.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
	}
	if err != nil {
		l.log.Warnf("Failed to acquire capture lock: key=%s, error=%v", key, err)
		l.observe(constants.ResultFailed)
		return nil, creditErrors.Wrap(err, creditErrors.ErrCodeCaptureInProgress)
	}
	l.observe(constants.ResultSuccess)

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Warnf("Failed to release capture lock: key=%s, error=%v", key, err)
		}
	}, nil
}

func (l *redisLocker) observe(result string) {
	if l.metrics != nil {
		l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
	}
}

// localLocker 单实例部署使用的进程内锁
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, creditErrors.New(creditErrors.ErrCodeCaptureInProgress)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
