package entitlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanSource defines how plans are loaded into the catalog.
type PlanSource interface {
	Load(ctx context.Context) (map[Tier]Plan, error)
}

type inMemSource struct {
	plans map[Tier]Plan
}

// NewInMemSource returns an in-memory PlanSource with a deep copy of the given plans.
// Panics if no plans are provided.
func NewInMemSource(plans ...Plan) PlanSource {
	if len(plans) == 0 {
		panic("entitlement: at least one plan is required")
	}
	plansCopy := make(map[Tier]Plan, len(plans))
	for _, p := range plans {
		plansCopy[p.Tier] = p.clone()
	}
	return &inMemSource{plans: plansCopy}
}

// Load returns a copy so callers cannot modify the source's state.
func (s *inMemSource) Load(_ context.Context) (map[Tier]Plan, error) {
	out := make(map[Tier]Plan, len(s.plans))
	for t, p := range s.plans {
		out[t] = p.clone()
	}
	return out, nil
}

// yamlCatalog is the on-disk layout of a plan catalog file.
type yamlCatalog struct {
	Plans []Plan `yaml:"plans"`
}

type yamlSource struct {
	open func() (io.ReadCloser, error)
}

// NewYAMLSource reads plans from a YAML file on every Load.
//
//	plans:
//	  - tier: free
//	    name: Free
//	    limits:
//	      caps: {max_objectives: 3, ...}
//	      features: {ice_score: false, ...}
func NewYAMLSource(path string) PlanSource {
	return &yamlSource{open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// NewYAMLReaderSource reads plans from r. The reader is consumed by the first Load.
func NewYAMLReaderSource(r io.Reader) PlanSource {
	return &yamlSource{open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

func (s *yamlSource) Load(_ context.Context) (map[Tier]Plan, error) {
	rc, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("open plan catalog: %w", err)
	}
	defer rc.Close()

	var doc yamlCatalog
	dec := yaml.NewDecoder(rc)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}

	plans := make(map[Tier]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if _, dup := plans[p.Tier]; dup {
			return nil, fmt.Errorf("duplicate plan for tier %q", p.Tier)
		}
		plans[p.Tier] = p
	}
	return plans, nil
}
