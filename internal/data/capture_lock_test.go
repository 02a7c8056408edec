package data

import (
	"context"
	"io"
	"testing"
	"time"

	"credit-service/internal/biz"
	creditErrors "credit-service/internal/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func assertExclusive(t *testing.T, locker biz.CaptureLocker) {
	t.Helper()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "capture:lock:PAY-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "capture:lock:PAY-1")
	require.Error(t, err)
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeCaptureInProgress))

	other, err := locker.Acquire(ctx, "capture:lock:PAY-2")
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(ctx, "capture:lock:PAY-1")
	require.NoError(t, err)
	again()
}

func TestCaptureLocker_Redis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewCaptureLocker(NewRedsync(rdb), &biz.CreditConfig{CaptureLockExpiry: 10 * time.Second}, log.NewStdLogger(io.Discard))

	assertExclusive(t, locker)

	release, err := locker.Acquire(context.Background(), "capture:lock:PAY-3")
	require.NoError(t, err)
	assert.True(t, mr.Exists("capture:lock:PAY-3"))
	release()
	assert.False(t, mr.Exists("capture:lock:PAY-3"))
}

func TestCaptureLocker_Local(t *testing.T) {
	locker := NewCaptureLocker(nil, &biz.CreditConfig{}, log.NewStdLogger(io.Discard))
	assertExclusive(t, locker)
}
