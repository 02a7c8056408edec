package biz_test

import (
	"context"
	"testing"

	"credit-service/internal/biz"
	creditErrors "credit-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_GetUsageSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.buy(t, "u1", "basic")
	_, err := env.featureUC.CallFeature(ctx, "u1", "legal-qa", map[string]string{"query": "Can I sublet?"})
	require.NoError(t, err)
	_, err = env.featureUC.CallFeature(ctx, "u1", "legal-qa", map[string]string{"query": "Deposit rules?"})
	require.NoError(t, err)

	for _, period := range []string{biz.StatsPeriodToday, biz.StatsPeriodMonth} {
		summary, err := env.statsUC.GetUsageSummary(ctx, "u1", period)
		require.NoError(t, err)
		assert.Equal(t, period, summary.Period)
		assert.Equal(t, int64(12), summary.CreditsPurchased)
		assert.Equal(t, int64(2), summary.TotalCalls)
		assert.Equal(t, int64(2), summary.CreditsUsed)
		require.Len(t, summary.Features, 1)
		assert.Equal(t, "legal-qa", summary.Features[0].FeatureID)
		assert.True(t, summary.From.Before(summary.To))
	}

	summary, err := env.statsUC.GetUsageSummary(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, biz.StatsPeriodMonth, summary.Period)

	_, err = env.statsUC.GetUsageSummary(ctx, "u1", "year")
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeInvalidArgument))

	_, err = env.statsUC.GetUsageSummary(ctx, "", "today")
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeInvalidUserID))
}
