package component

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	atlaserrors "github.com/atlasforge/atlas/internal/errors"
	"github.com/atlasforge/atlas/internal/types"
)

// resolution is the outcome of dependency resolution: every component in
// the install closure pinned to one version.
type resolution map[string]string // component id -> version

// resolve computes the transitive install closure of one component
// version. For every required component it picks the highest published
// version satisfying the constraints of all consumers that pulled it in.
// An unsatisfiable constraint set fails naming the conflicting
// constraints and their consumers.
func (l *Library) resolve(ctx context.Context, componentID, version string) (resolution, error) {
	// constraint provenance: component id -> consumer -> raw constraint
	demands := make(map[string]map[string]string)
	pinned := resolution{componentID: version}

	queue := []string{componentID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		c, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		cv := c.Version(pinned[id])
		if cv == nil {
			return nil, atlaserrors.Newf(atlaserrors.ClassNotFound,
				"component", "resolve", "component %s has no version %s", id, pinned[id])
		}

		for _, req := range cv.Requires {
			if demands[req.ComponentID] == nil {
				demands[req.ComponentID] = make(map[string]string)
			}
			demands[req.ComponentID][c.Name] = req.Constraint

			picked, err := l.pickVersion(ctx, req.ComponentID, demands[req.ComponentID])
			if err != nil {
				return nil, err
			}
			if pinned[req.ComponentID] != picked {
				// A tightened constraint can re-pin a dependency; its own
				// requirements are then re-walked at the new version.
				pinned[req.ComponentID] = picked
				queue = append(queue, req.ComponentID)
			}
		}
	}
	return pinned, nil
}

// pickVersion selects the highest published version of a component
// satisfying every consumer's constraint.
func (l *Library) pickVersion(ctx context.Context, componentID string, consumers map[string]string) (string, error) {
	c, err := l.Get(ctx, componentID)
	if err != nil {
		return "", err
	}

	constraints := make(map[string]*semver.Constraints, len(consumers))
	for consumer, raw := range consumers {
		parsed, err := semver.NewConstraint(raw)
		if err != nil {
			return "", atlaserrors.Newf(atlaserrors.ClassValidation,
				"component", "resolve", "constraint %q from %s does not parse", raw, consumer)
		}
		constraints[consumer] = parsed
	}

	var best *semver.Version
	for _, cv := range c.Versions {
		v, err := cv.Semver()
		if err != nil {
			return "", atlaserrors.Newf(atlaserrors.ClassCorruptState,
				"component", "resolve", "stored version %q does not parse", cv.Version)
		}
		ok := true
		for _, parsed := range constraints {
			if !parsed.Check(v) {
				ok = false
				break
			}
		}
		if ok && (best == nil || v.GreaterThan(best)) {
			best = v
		}
	}
	if best == nil {
		return "", unsatisfiable(c, consumers)
	}
	return best.String(), nil
}

// unsatisfiable builds a dependency error naming every conflicting
// constraint and its consumer, in stable order.
func unsatisfiable(c *types.Component, consumers map[string]string) error {
	names := make([]string, 0, len(consumers))
	for name := range consumers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s requires %q", name, consumers[name]))
	}
	return atlaserrors.Newf(atlaserrors.ClassDependency,
		"component", "resolve", "no version of %s satisfies: %s",
		c.Name, strings.Join(parts, ", "))
}
