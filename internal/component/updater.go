package component

import (
	"context"
	"fmt"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// UpdateOpts controls how an update is applied. Confirm acknowledges a
// breaking change; AutoApply applies non-breaking updates without
// further ceremony.
type UpdateOpts struct {
	Confirm   bool
	AutoApply bool
}

// UpdateReport describes what an update would do or did.
type UpdateReport struct {
	ComponentID string
	From        string
	To          string
	Breaking    bool
	Applied     bool
}

// Update diffs the installed version of a component in a target against
// the latest published version. A breaking jump is refused unless
// Confirm is set; a non-breaking jump applies when AutoApply is set and
// is otherwise only reported. Updating an already current install is a
// no-op.
func (l *Library) Update(ctx context.Context, target InstallTarget, componentID string, opts UpdateOpts) (*UpdateReport, error) {
	c, err := l.Get(ctx, componentID)
	if err != nil {
		return nil, err
	}
	inst, err := l.store.GetInstallation(ctx, componentID, target.ProjectID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, atlaserrors.Newf(atlaserrors.ClassNotFound,
			"component", "update", "component %s is not installed in %s", c.Name, target.ProjectID)
	}

	report := &UpdateReport{
		ComponentID: componentID,
		From:        inst.Version,
		To:          c.Current,
	}
	if inst.Version == c.Current {
		report.Applied = true
		return report, nil
	}

	report.Breaking = crossesBreaking(c, inst.Version, c.Current)
	if report.Breaking && !opts.Confirm {
		return report, atlaserrors.Wrap(atlaserrors.ErrConfirmationRequired,
			"component", "update",
			fmt.Sprintf("%s %s to %s is breaking", c.Name, inst.Version, c.Current))
	}
	if !report.Breaking && !opts.AutoApply && !opts.Confirm {
		return report, nil
	}

	if _, err := l.install(ctx, componentID, c.Current, target, true); err != nil {
		return nil, err
	}
	report.Applied = true
	return report, nil
}

// crossesBreaking reports whether any version published after from, up
// to and including to, was breaking.
func crossesBreaking(c *types.Component, from, to string) bool {
	inWindow := false
	for _, cv := range c.Versions {
		if cv.Version == from {
			inWindow = true
			continue
		}
		if !inWindow {
			continue
		}
		if cv.Breaking {
			return true
		}
		if cv.Version == to {
			return false
		}
	}
	return false
}
