//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/testutil"
)

func TestReportCacheAgainstRedis(t *testing.T) {
	client := testutil.SetupRedis(t)
	ctx := context.Background()
	c := NewReportCache(client, time.Minute, nil)
	report := sampleReport()

	_, gen, ok := c.Get(ctx, report.StartDate, report.EndDate)
	assert.False(t, ok)

	c.Set(ctx, gen, report)

	ttl, err := client.TTL(ctx, reportKey(gen, report.StartDate, report.EndDate)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	got, _, ok := c.Get(ctx, report.StartDate, report.EndDate)
	require.True(t, ok)
	assert.True(t, report.TotalRevenue.Equal(got.TotalRevenue))

	c.Invalidate(ctx)
	_, next, ok := c.Get(ctx, report.StartDate, report.EndDate)
	assert.False(t, ok)
	assert.Equal(t, gen+1, next)
}
