package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/poiml/pkg/errors"
)

// ParamSpace maps a hyperparameter name to the values it should take.
type ParamSpace map[string][]interface{}

// ParameterGrid enumerates every combination of one or more ParamSpaces.
// Within a space keys are visited in sorted order with the last key varying
// fastest; spaces are concatenated in the order given.
type ParameterGrid struct {
	spaces []ParamSpace
}

// NewParameterGrid creates a grid. A space with an empty value list yields
// no candidates and is rejected.
func NewParameterGrid(spaces ...ParamSpace) (*ParameterGrid, error) {
	if len(spaces) == 0 {
		return nil, errors.NewValidationError("param_grid", "at least one parameter space is required", nil)
	}
	for _, space := range spaces {
		for name, values := range space {
			if len(values) == 0 {
				return nil, errors.NewValidationError("param_grid", "parameter has no candidate values", name)
			}
		}
	}
	return &ParameterGrid{spaces: spaces}, nil
}

// Len returns the number of candidates
func (g *ParameterGrid) Len() int {
	total := 0
	for _, space := range g.spaces {
		n := 1
		for _, values := range space {
			n *= len(values)
		}
		total += n
	}
	return total
}

// Candidates returns every parameter combination in grid order. Each map is
// a fresh copy.
func (g *ParameterGrid) Candidates() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, g.Len())
	for _, space := range g.spaces {
		keys := make([]string, 0, len(space))
		for k := range space {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		// An empty space contributes the single empty candidate.
		combos := []map[string]interface{}{{}}
		for _, k := range keys {
			next := make([]map[string]interface{}, 0, len(combos)*len(space[k]))
			for _, c := range combos {
				for _, v := range space[k] {
					m := make(map[string]interface{}, len(c)+1)
					for ck, cv := range c {
						m[ck] = cv
					}
					m[k] = v
					next = append(next, m)
				}
			}
			combos = next
		}
		out = append(out, combos...)
	}
	return out
}
