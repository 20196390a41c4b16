// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordQueryPerTier(t *testing.T) {
	c := New()
	c.RecordQuery(TierDirect, 0, 150, 5*time.Millisecond)
	c.RecordQuery(TierComplex, 800, 0, 200*time.Millisecond)

	snap := c.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.DirectQueries)
	assert.Equal(t, int64(1), snap.ComplexQueries)
	assert.Equal(t, int64(150), snap.TokensSaved)
	assert.Equal(t, int64(800), snap.TokensUsed)
	assert.InDelta(t, 0.5, snap.DirectHitRate, 0.001)
}

func TestEscalationCounter(t *testing.T) {
	c := New()
	c.RecordEscalation()
	c.RecordEscalation()
	assert.Equal(t, int64(2), c.GetSnapshot().Escalations)
}

func TestSnapshotIsPureRead(t *testing.T) {
	c := New()
	c.RecordQuery(TierDirect, 0, 10, time.Millisecond)
	before := c.GetSnapshot()
	_ = c.GetSnapshot()
	assert.Equal(t, before.TotalQueries, c.GetSnapshot().TotalQueries)
}

func TestConcurrentUpdatesAreMonotonic(t *testing.T) {
	c := New()
	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.RecordQuery(TierDirect, 0, 1, time.Millisecond)
				c.RecordEscalation()
			}
		}()
	}
	wg.Wait()

	snap := c.GetSnapshot()
	assert.Equal(t, int64(workers*perWorker), snap.TotalQueries)
	assert.Equal(t, int64(workers*perWorker), snap.Escalations)
	assert.Equal(t, int64(workers*perWorker), snap.TokensSaved)
}

func TestAvgLatency(t *testing.T) {
	c := New()
	c.RecordQuery(TierDirect, 0, 0, 10*time.Millisecond)
	c.RecordQuery(TierDirect, 0, 0, 30*time.Millisecond)
	assert.InDelta(t, 20.0, c.GetSnapshot().AvgLatencyMs, 0.001)
}
