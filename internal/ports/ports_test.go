package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChecker implements HealthChecker for testing.
type mockChecker struct {
	name string
	err  error
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	return m.err
}

func TestNewHealthRegistry(t *testing.T) {
	registry := NewHealthRegistry()

	require.NotNil(t, registry)
	assert.Empty(t, registry.checkers)
	assert.Equal(t, DefaultCheckTimeout, registry.timeout)
}

func TestRegister_DuplicateName(t *testing.T) {
	registry := NewHealthRegistry()

	require.NoError(t, registry.Register(&mockChecker{name: "session-store"}))

	err := registry.Register(&mockChecker{name: "session-store"})

	require.ErrorIs(t, err, ErrDuplicateChecker)
	assert.Contains(t, err.Error(), "session-store")
	assert.Len(t, registry.checkers, 1)
}

func TestCheckAll_NoCheckers(t *testing.T) {
	result := NewHealthRegistry().CheckAll(context.Background())

	require.NotNil(t, result)
	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Empty(t, result.Checks)
	assert.False(t, result.Timestamp.IsZero())
}

func TestCheckAll_Mixed(t *testing.T) {
	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(&mockChecker{name: "catalog"}))
	require.NoError(t, registry.Register(&mockChecker{name: "session-store", err: errors.New("connection refused")}))

	result := registry.CheckAll(context.Background())

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	require.Len(t, result.Checks, 2)
	assert.Equal(t, HealthStatusHealthy, result.Checks["catalog"].Status)
	assert.Empty(t, result.Checks["catalog"].Message)
	assert.Equal(t, HealthStatusUnhealthy, result.Checks["session-store"].Status)
	assert.Equal(t, "connection refused", result.Checks["session-store"].Message)
}

func TestCheckFunc(t *testing.T) {
	called := false
	check := CheckFunc{
		CheckName: "catalog",
		Fn: func(ctx context.Context) error {
			called = true
			return nil
		},
	}

	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(check))

	result := registry.CheckAll(context.Background())
	assert.True(t, called)
	assert.Equal(t, HealthStatusHealthy, result.Checks["catalog"].Status)
}

// slowChecker blocks until its context is done or a second passes.
type slowChecker struct{}

func (slowChecker) Name() string { return "slow" }

func (slowChecker) Check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
		return nil
	}
}

func TestCheckAll_PerCheckTimeout(t *testing.T) {
	registry := NewHealthRegistryWithTimeout(20 * time.Millisecond)
	require.NoError(t, registry.Register(slowChecker{}))

	result := registry.CheckAll(context.Background())

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Checks["slow"].Message, "deadline exceeded")
}

func TestCheckAll_ContextCancelled(t *testing.T) {
	registry := NewHealthRegistryWithTimeout(0)
	require.NoError(t, registry.Register(slowChecker{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := registry.CheckAll(ctx)

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Checks["slow"].Message, "context canceled")
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	assert.False(t, now.Before(before))
}
