package registry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/atlasforge/atlas/internal/types"
)

// trendSeriesLimit bounds the retained health trend per project. Only the
// latest snapshot plus this series is kept; no independent history.
const trendSeriesLimit = 32

// freshnessHalfLife is the activity age at which the freshness component
// has decayed to 0.5.
const freshnessHalfLife = 14 * 24 * time.Hour

// ComputeHealthScore derives a 0-100 health value for a project from its
// deployment success rate, error rate, and activity freshness, blended by
// the configured weights. The score is stored on the project and appended
// to its bounded trend series.
func (r *Registry) ComputeHealthScore(ctx context.Context, id string) (*types.HealthScore, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := r.deploys.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching deployment history: %w", err)
	}
	summary, err := r.monitor.Summary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching monitoring summary: %w", err)
	}

	score := &types.HealthScore{
		Deployment: deploymentComponent(events),
		Errors:     errorComponent(summary.ErrorRate),
		Freshness:  freshnessComponent(lastActivity(p, events, summary), time.Now()),
		ComputedAt: time.Now(),
	}

	w := r.cfg.Health
	raw := w.DeploymentWeight*score.Deployment +
		w.ErrorWeight*score.Errors +
		w.FreshnessWeight*score.Freshness
	score.Score = clamp(raw*100, 0, 100)

	if err := score.Validate(); err != nil {
		return nil, fmt.Errorf("computed score out of range: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, err = r.getLocked(id)
	if err != nil {
		return nil, err
	}
	p.Health = score
	p.Trend = append(p.Trend, score.Score)
	if len(p.Trend) > trendSeriesLimit {
		p.Trend = p.Trend[len(p.Trend)-trendSeriesLimit:]
	}
	p.UpdatedAt = time.Now()
	if err := r.store.Put(p.ID, p); err != nil {
		return nil, fmt.Errorf("saving health score: %w", err)
	}

	return score, nil
}

// deploymentComponent is the success rate over the deployment history.
// With no history the component is neutral (0.5) rather than punishing
// projects that have never deployed.
func deploymentComponent(events []DeploymentEvent) float64 {
	if len(events) == 0 {
		return 0.5
	}
	ok := 0
	for _, e := range events {
		if e.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(events))
}

// errorComponent maps an error rate in [0,1] to a health component where
// 1.0 means no errors.
func errorComponent(errorRate float64) float64 {
	return clamp(1-errorRate, 0, 1)
}

// freshnessComponent decays exponentially with time since the last
// activity. It is strictly monotone: more recent activity never lowers
// the component.
func freshnessComponent(last time.Time, now time.Time) float64 {
	if last.IsZero() {
		return 0.5 // no activity signal at all
	}
	age := now.Sub(last)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(freshnessHalfLife))
}

// lastActivity picks the most recent activity signal available: monitoring
// activity, latest deployment, or the project's own update timestamp.
func lastActivity(p *types.Project, events []DeploymentEvent, summary MonitoringSummary) time.Time {
	last := p.UpdatedAt
	if summary.LastActivity.After(last) {
		last = summary.LastActivity
	}
	for _, e := range events {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
