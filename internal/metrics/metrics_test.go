package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUpdateCacheGauges(t *testing.T) {
	UpdateCacheGauges(10, 3, 4096)
	assert.Equal(t, float64(10), testutil.ToFloat64(CacheHits))
	assert.Equal(t, float64(3), testutil.ToFloat64(CacheMisses))
	assert.Equal(t, float64(4096), testutil.ToFloat64(CacheSizeBytes))
}

func TestObserveResolve_LabelsByChainState(t *testing.T) {
	before := testutil.CollectAndCount(ResolveDuration)
	ObserveResolve(time.Now(), true)
	ObserveResolve(time.Now(), false)
	after := testutil.CollectAndCount(ResolveDuration)
	assert.Greater(t, after, before)
}
