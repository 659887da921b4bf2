package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasforge/atlas/internal/config"
)

// stubDeploys returns a fixed deployment history.
type stubDeploys struct {
	events []DeploymentEvent
}

func (s stubDeploys) History(ctx context.Context, projectID string) ([]DeploymentEvent, error) {
	return s.events, nil
}

// stubMonitor returns a fixed monitoring summary.
type stubMonitor struct {
	summary MonitoringSummary
}

func (s stubMonitor) Summary(ctx context.Context, projectID string) (MonitoringSummary, error) {
	return s.summary, nil
}

func registryWith(t *testing.T, deploys DeploymentHistoryProvider, monitor MonitoringProvider) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.json"), config.Default(), Options{
		Deploys: deploys,
		Monitor: monitor,
	})
	require.NoError(t, err)
	return r
}

func TestHealthScoreInRange(t *testing.T) {
	tests := []struct {
		name    string
		deploys []DeploymentEvent
		summary MonitoringSummary
	}{
		{"no data", nil, MonitoringSummary{}},
		{"all failing", []DeploymentEvent{
			{Timestamp: time.Now().Add(-400 * 24 * time.Hour), Success: false},
		}, MonitoringSummary{ErrorRate: 1.0}},
		{"perfect", []DeploymentEvent{
			{Timestamp: time.Now(), Success: true},
		}, MonitoringSummary{ErrorRate: 0, LastActivity: time.Now()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registryWith(t, stubDeploys{tt.deploys}, stubMonitor{tt.summary})
			dir := makeProjectDir(t, "svc", "go.mod")
			p, err := r.Register(context.Background(), Descriptor{Path: dir})
			require.NoError(t, err)

			score, err := r.ComputeHealthScore(context.Background(), p.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score.Score, 0.0)
			assert.LessOrEqual(t, score.Score, 100.0)
		})
	}
}

func TestHealthFreshnessMonotone(t *testing.T) {
	// Holding deployments and error rate fixed, strictly more recent
	// activity must never decrease the score.
	deploys := stubDeploys{[]DeploymentEvent{
		{Timestamp: time.Now().Add(-60 * 24 * time.Hour), Success: true},
	}}

	ages := []time.Duration{
		90 * 24 * time.Hour,
		30 * 24 * time.Hour,
		7 * 24 * time.Hour,
		time.Hour,
	}

	var prev float64 = -1
	for _, age := range ages {
		r := registryWith(t, deploys, stubMonitor{MonitoringSummary{
			ErrorRate:    0.2,
			LastActivity: time.Now().Add(-age),
		}})
		dir := makeProjectDir(t, "svc", "go.mod")
		p, err := r.Register(context.Background(), Descriptor{Path: dir})
		require.NoError(t, err)

		score, err := r.ComputeHealthScore(context.Background(), p.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score.Score, prev,
			"score must not decrease as activity gets more recent (age %s)", age)
		prev = score.Score
	}
}

func TestHealthDeploymentComponent(t *testing.T) {
	events := []DeploymentEvent{
		{Success: true}, {Success: true}, {Success: false}, {Success: true},
	}
	assert.InDelta(t, 0.75, deploymentComponent(events), 1e-9)
	assert.Equal(t, 0.5, deploymentComponent(nil))
}

func TestHealthTrendSeriesBounded(t *testing.T) {
	r := registryWith(t, stubDeploys{}, stubMonitor{})
	dir := makeProjectDir(t, "svc", "go.mod")
	p, err := r.Register(context.Background(), Descriptor{Path: dir})
	require.NoError(t, err)

	for i := 0; i < trendSeriesLimit+10; i++ {
		_, err := r.ComputeHealthScore(context.Background(), p.ID)
		require.NoError(t, err)
	}

	got, err := r.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Trend, trendSeriesLimit)
	require.NotNil(t, got.Health)
}
