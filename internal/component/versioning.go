package component

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/atlasforge/atlas/internal/types"
)

// diffInterface classifies the change between two exported interface
// shape lists. Each shape is keyed by its symbol name: a key that
// disappears or changes shape is breaking, a new key is additive, and an
// unchanged set is cosmetic.
func diffInterface(old, new []string) types.BumpKind {
	oldByName := shapesByName(old)
	newByName := shapesByName(new)

	for name, shape := range oldByName {
		current, ok := newByName[name]
		if !ok || current != shape {
			return types.BumpMajor
		}
	}
	if len(newByName) > len(oldByName) {
		return types.BumpMinor
	}
	return types.BumpPatch
}

// shapesByName indexes shape strings by symbol name. Shapes read
// "kind name rest"; methods read "method (Recv) name rest" and key on
// receiver plus name so same-named methods on different types stay
// distinct.
func shapesByName(shapes []string) map[string]string {
	byName := make(map[string]string, len(shapes))
	for _, shape := range shapes {
		fields := strings.SplitN(shape, " ", 4)
		if len(fields) < 2 {
			continue
		}
		key := fields[1]
		if fields[0] == "method" && len(fields) >= 3 {
			key = fields[1] + "." + fields[2]
		}
		byName[key] = shape
	}
	return byName
}

// nextVersion applies a bump to a prior version. The first published
// version of a component is always 1.0.0.
func nextVersion(prior *semver.Version, bump types.BumpKind) string {
	if prior == nil {
		return "1.0.0"
	}
	var next semver.Version
	switch bump {
	case types.BumpMajor:
		next = prior.IncMajor()
	case types.BumpMinor:
		next = prior.IncMinor()
	default:
		next = prior.IncPatch()
	}
	return next.String()
}
