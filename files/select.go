package files

import (
	"fmt"
	"slices"

	"github.com/ridoystarlord/casemigrate/pipeline"
)

// SelectQueries returns the catalogue entries named in selected, expanding
// group names, in catalogue order. An empty selection returns the whole
// catalogue.
func SelectQueries(catalogue []pipeline.QueryDescriptor, groups map[string][]string, selected []string) ([]pipeline.QueryDescriptor, error) {
	if len(selected) == 0 {
		return catalogue, nil
	}

	wanted := map[string]bool{}
	for _, name := range selected {
		if members, ok := groups[name]; ok {
			for _, m := range members {
				wanted[m] = true
			}
			continue
		}
		if !slices.ContainsFunc(catalogue, func(q pipeline.QueryDescriptor) bool { return q.Name == name }) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
		}
		wanted[name] = true
	}

	var out []pipeline.QueryDescriptor
	for _, q := range catalogue {
		if wanted[q.Name] {
			out = append(out, q)
		}
	}
	return out, nil
}
