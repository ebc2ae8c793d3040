package projection

import (
	"fmt"
	"sort"

	"github.com/prism-data/prism/internal/emul"
	"github.com/prism-data/prism/internal/monitoring"
	"github.com/prism-data/prism/internal/param"
)

// Cache is the subset of the projection store the resolver needs to
// deduplicate requests against already-computed datasets.
type Cache interface {
	Exists(key Key) (bool, error)
}

// Resolver translates a caller's requested iteration and parameter list into
// the concrete set of projection keys to compute.
type Resolver struct {
	space *param.Space
	reg   *emul.Registry
}

func NewResolver(space *param.Space, reg *emul.Registry) *Resolver {
	return &Resolver{space: space, reg: reg}
}

// Resolve builds the key set for a request.
//
// Iteration 0 selects the latest constructed iteration. An empty parameter
// list selects all active parameters. Unknown parameter names are fatal;
// passive ones are dropped silently. On a model with exactly two parameters
// only 2D projections exist: an explicit 3D request is rejected with
// ErrUnsupportedProjection while "both" degrades to the 2D keys.
//
// When cache is non-nil and force is false, keys whose datasets already exist
// are dropped from the compute set (they are still returned in cached for
// figure reuse).
func (r *Resolver) Resolve(iteration int, params []string, typ Type, cache Cache, force bool) (compute, cached []Key, err error) {
	if typ != Type2D && typ != Type3D && typ != TypeBoth {
		return nil, nil, fmt.Errorf("invalid projection type %q", typ)
	}
	if iteration == 0 {
		iteration = r.reg.Latest()
	}
	st, err := r.reg.State(iteration)
	if err != nil {
		return nil, nil, err
	}

	if len(params) == 0 {
		params = st.Active
	}

	// Validate names first (unknown is fatal), then filter passive silently.
	activeSet := make(map[string]bool, len(st.Active))
	for _, name := range st.Active {
		activeSet[name] = true
	}
	var requested []string
	seen := make(map[string]bool)
	for _, name := range params {
		if _, err := r.space.Lookup(name); err != nil {
			return nil, nil, err
		}
		if !activeSet[name] {
			monitoring.Logf("[Projection] dropping passive parameter %q from request", name)
			continue
		}
		if !seen[name] {
			seen[name] = true
			requested = append(requested, name)
		}
	}
	sort.Strings(requested)

	twoParModel := r.space.Dim() == 2
	if twoParModel {
		if typ == Type3D {
			return nil, nil, ErrUnsupportedProjection
		}
		typ = Type2D
	}

	var keys []Key
	switch typ {
	case Type2D:
		if len(requested) < 1 {
			return nil, nil, ErrNotEnoughParams
		}
		for _, name := range requested {
			keys = append(keys, NewKey(iteration, Type2D, name))
		}
	case Type3D, TypeBoth:
		if len(requested) < 2 {
			return nil, nil, ErrNotEnoughParams
		}
		for i := 0; i < len(requested); i++ {
			for j := i + 1; j < len(requested); j++ {
				keys = append(keys, NewKey(iteration, Type3D, requested[i], requested[j]))
			}
		}
		if typ == TypeBoth {
			for _, name := range requested {
				keys = append(keys, NewKey(iteration, Type2D, name))
			}
		}
	}

	if cache == nil || force {
		return keys, nil, nil
	}
	for _, key := range keys {
		exists, err := cache.Exists(key)
		if err != nil {
			return nil, nil, fmt.Errorf("cache lookup for %s: %w", key, err)
		}
		if exists {
			cached = append(cached, key)
		} else {
			compute = append(compute, key)
		}
	}
	return compute, cached, nil
}
