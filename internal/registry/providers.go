package registry

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/atlasforge/atlas/internal/types"
)

// TechnologyDetector produces an immutable technology profile snapshot
// for a project tree. Detection heuristics are ecosystem-specific and live
// behind this interface; the core never branches on ecosystem identity.
type TechnologyDetector interface {
	Detect(projectPath string) (types.TechnologyProfile, error)
}

// DeploymentEvent is one entry in a project's deployment history,
// supplied by an external collaborator.
type DeploymentEvent struct {
	Timestamp time.Time
	Success   bool
}

// DeploymentHistoryProvider supplies ordered deployment events for a
// project. Used only by ComputeHealthScore.
type DeploymentHistoryProvider interface {
	History(ctx context.Context, projectID string) ([]DeploymentEvent, error)
}

// MonitoringSummary is an error-rate and activity snapshot for a project.
type MonitoringSummary struct {
	ErrorRate    float64 // [0,1]
	Uptime       float64 // [0,1]
	LastActivity time.Time
}

// MonitoringProvider supplies monitoring summaries. Used by
// ComputeHealthScore and as insight evidence.
type MonitoringProvider interface {
	Summary(ctx context.Context, projectID string) (MonitoringSummary, error)
}

// MarkerDetector is the default TechnologyDetector: it infers a profile
// from well-known marker files in the project tree. One detector variant
// exists per ecosystem convention; this one covers the common cases.
type MarkerDetector struct{}

// Detect inspects marker files under projectPath.
func (MarkerDetector) Detect(projectPath string) (types.TechnologyProfile, error) {
	var profile types.TechnologyProfile

	exists := func(rel string) bool {
		_, err := os.Stat(filepath.Join(projectPath, rel))
		return err == nil
	}

	switch {
	case exists("go.mod"):
		profile.Framework = "go"
	case exists("package.json"):
		profile.Framework = "node"
	case exists("pyproject.toml"), exists("requirements.txt"):
		profile.Framework = "python"
	case exists("Cargo.toml"):
		profile.Framework = "rust"
	}

	switch {
	case exists("docker-compose.yml"), exists("docker-compose.yaml"):
		profile.Datastore = "compose-managed"
	case exists("migrations"), exists("db/migrations"):
		profile.Datastore = "sql"
	}

	switch {
	case exists("Dockerfile"):
		profile.DeployTarget = "container"
	case exists("serverless.yml"):
		profile.DeployTarget = "serverless"
	}

	switch {
	case exists(".github/workflows"):
		profile.CISystem = "github-actions"
	case exists(".gitlab-ci.yml"):
		profile.CISystem = "gitlab-ci"
	}

	if exists("prometheus.yml") {
		profile.Monitoring = append(profile.Monitoring, "prometheus")
	}

	return profile, nil
}

// NoDeployments is a DeploymentHistoryProvider with no history, used when
// no deployment collaborator is wired.
type NoDeployments struct{}

// History returns an empty deployment history.
func (NoDeployments) History(ctx context.Context, projectID string) ([]DeploymentEvent, error) {
	return nil, nil
}

// NoMonitoring is a MonitoringProvider with no data.
type NoMonitoring struct{}

// Summary returns a neutral monitoring summary.
func (NoMonitoring) Summary(ctx context.Context, projectID string) (MonitoringSummary, error) {
	return MonitoringSummary{}, nil
}
