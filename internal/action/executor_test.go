// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package action

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/store"
)

type fakeStore struct {
	counts map[store.EntityKind]int64
	err    error
}

func (f *fakeStore) Count(_ context.Context, kind store.EntityKind, _ map[string]any) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[kind], nil
}

func (f *fakeStore) List(_ context.Context, _ store.EntityKind, _ map[string]any, _ store.Pagination) ([]store.Row, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func TestExecuteCountStudents(t *testing.T) {
	st := &fakeStore{counts: map[store.EntityKind]int64{store.KindStudents: 1248}}
	exec := NewExecutor(st, metrics.New())

	res := exec.Execute(context.Background(), "count_students", "学生总数")
	require.True(t, res.Success)
	assert.Contains(t, res.Response, "1248")
	require.NotNil(t, res.Render)
	assert.Equal(t, "stat-card", res.Render.Component)
	assert.Equal(t, 0, res.TokensUsed)
}

func TestExecuteNavigate(t *testing.T) {
	exec := NewExecutor(&fakeStore{}, metrics.New())

	res := exec.Execute(context.Background(), "navigate_students", "打开学生管理")
	require.True(t, res.Success)
	require.NotNil(t, res.Render)
	assert.Equal(t, "navigate", res.Render.Component)
	assert.Equal(t, "/admin/students", res.Render.Target)
}

func TestExecuteStoreFailureDoesNotPropagate(t *testing.T) {
	st := &fakeStore{err: fmt.Errorf("connection refused")}
	exec := NewExecutor(st, metrics.New())

	res := exec.Execute(context.Background(), "count_teachers", "教师总数")
	assert.False(t, res.Success)
	assert.Empty(t, res.Response)
}

func TestExecuteUnknownAction(t *testing.T) {
	exec := NewExecutor(&fakeStore{}, metrics.New())

	res := exec.Execute(context.Background(), "delete_everything", "x")
	assert.False(t, res.Success)
}

func TestExecuteSystemStatus(t *testing.T) {
	counters := metrics.New()
	counters.RecordQuery(metrics.TierDirect, 0, 900, 0)
	exec := NewExecutor(&fakeStore{}, counters)

	res := exec.Execute(context.Background(), "system_status", "系统状态")
	require.True(t, res.Success)
	assert.Contains(t, res.Response, "1")
	require.NotNil(t, res.Render)
	assert.Equal(t, "status-panel", res.Render.Component)
}

func TestExecuteHelp(t *testing.T) {
	exec := NewExecutor(&fakeStore{}, metrics.New())

	res := exec.Execute(context.Background(), "help", "你能做什么")
	require.True(t, res.Success)
	assert.NotEmpty(t, res.Response)
	assert.Nil(t, res.Render)
}

func TestValidateActions(t *testing.T) {
	exec := NewExecutor(&fakeStore{}, metrics.New())

	assert.NoError(t, exec.ValidateActions([]string{"count_students", "help", "navigate_schedule"}))

	err := exec.ValidateActions([]string{"count_students", "summon_dragon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summon_dragon")
}
