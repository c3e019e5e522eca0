// Package catalog loads declarative kind and shape descriptions from
// YAML and resolves them into an interned, frozen shape.Registry.
//
// Shapes may only reference kinds and shapes declared before them, so a
// request whose decay was never declared fails at load time, not at
// event time. All dangling references are collected and reported
// together; one resolvable reference never masks another's failure.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// ErrDuplicateName is returned when two kinds or two shapes share a name.
var ErrDuplicateName = errors.New("catalog: duplicate name")

// ErrUnknownKind is returned for a leaf entry referencing an undeclared kind.
var ErrUnknownKind = errors.New("catalog: unknown kind")

// ErrUnknownShape is returned for a decay entry referencing an undeclared shape.
var ErrUnknownShape = errors.New("catalog: unknown shape")

// ErrBadCount is returned for non-positive entry counts.
var ErrBadCount = errors.New("catalog: entry count must be positive")

// ErrNoName is returned for a kind or shape without a name.
var ErrNoName = errors.New("catalog: missing name")

// KindSpec declares one leaf kind and its traits.
type KindSpec struct {
	Name    string `yaml:"name"`
	Charged bool   `yaml:"charged"`
	Timing  bool   `yaml:"timing"`
	Massive bool   `yaml:"massive"`
	ZoneDep bool   `yaml:"zone_dependent"`
}

// ShapeSpec declares one shape: leaf counts by kind name and decay
// counts by previously declared shape name. Cut marks a labeled use
// whose result list is gated by the engine's cut function.
type ShapeSpec struct {
	Name   string         `yaml:"name"`
	Cut    bool           `yaml:"cut"`
	Leaves map[string]int `yaml:"leaves"`
	Decays map[string]int `yaml:"decays"`
}

// File is the YAML document layout.
type File struct {
	Kinds  []KindSpec  `yaml:"kinds"`
	Shapes []ShapeSpec `yaml:"shapes"`
}

// Catalog is the resolved result: a frozen registry plus the name
// lookups for kinds, labels and uses.
type Catalog struct {
	Registry *shape.Registry
	Table    core.KindTable

	kinds  map[string]core.Kind
	labels map[string]shape.Label
	uses   map[string]shape.Use
}

// Kind resolves a declared kind name.
func (c *Catalog) Kind(name string) (core.Kind, error) {
	k, ok := c.kinds[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}

	return k, nil
}

// Label resolves the cut label of a shape declared with cut: true.
func (c *Catalog) Label(name string) (shape.Label, bool) {
	l, ok := c.labels[name]

	return l, ok
}

// Use resolves a declared shape name into its registered use.
func (c *Catalog) Use(name string) (shape.Use, error) {
	u, ok := c.uses[name]
	if !ok {
		return shape.Use{}, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}

	return u, nil
}

// Names lists the declared shape names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.uses))
	for n := range c.uses {
		out = append(out, n)
	}
	sort.Strings(out)

	return out
}

// Load reads a YAML catalog and resolves it. The returned registry is
// frozen and ready for combo.NewEngine.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: read: %w", err)
	}

	return Parse(data)
}

// Parse resolves a YAML catalog held in memory.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	return resolve(&f)
}

// resolve validates the document and interns every shape. Reference
// errors are AND-combined: every dangling kind or shape is collected
// and the whole load fails if any reference failed.
func resolve(f *File) (*Catalog, error) {
	c := &Catalog{
		Table:  make(core.KindTable, len(f.Kinds)),
		kinds:  make(map[string]core.Kind, len(f.Kinds)),
		labels: make(map[string]shape.Label),
		uses:   make(map[string]shape.Use, len(f.Shapes)),
	}
	var errs []error

	next := core.Kind(1)
	for _, ks := range f.Kinds {
		if ks.Name == "" {
			errs = append(errs, fmt.Errorf("%w: kind entry", ErrNoName))

			continue
		}
		if _, dup := c.kinds[ks.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: kind %q", ErrDuplicateName, ks.Name))

			continue
		}
		c.kinds[ks.Name] = next
		c.Table[next] = core.KindTraits{
			Charged: ks.Charged,
			Timing:  ks.Timing,
			Massive: ks.Massive,
			ZoneDep: ks.ZoneDep,
		}
		next++
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c.Registry = shape.NewRegistry(c.Table)
	nextLabel := shape.Label(1)
	for _, ss := range f.Shapes {
		if ss.Name == "" {
			errs = append(errs, fmt.Errorf("%w: shape entry", ErrNoName))

			continue
		}
		if _, dup := c.uses[ss.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: shape %q", ErrDuplicateName, ss.Name))

			continue
		}
		var (
			ls  []shape.LeafCount
			ss2 []shape.SubCount
			bad bool
		)
		for name, count := range ss.Leaves {
			k, ok := c.kinds[name]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %q in shape %q", ErrUnknownKind, name, ss.Name))
				bad = true

				continue
			}
			if count <= 0 {
				errs = append(errs, fmt.Errorf("%w: leaf %q in shape %q", ErrBadCount, name, ss.Name))
				bad = true

				continue
			}
			ls = append(ls, shape.LeafCount{Kind: k, Count: count})
		}
		for name, count := range ss.Decays {
			u, ok := c.uses[name]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %q in shape %q", ErrUnknownShape, name, ss.Name))
				bad = true

				continue
			}
			if count <= 0 {
				errs = append(errs, fmt.Errorf("%w: decay %q in shape %q", ErrBadCount, name, ss.Name))
				bad = true

				continue
			}
			ss2 = append(ss2, shape.SubCount{Use: u, Count: count})
		}
		if bad {
			continue
		}
		sh, err := c.Registry.Intern(ls, ss2)
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: shape %q: %w", ss.Name, err))

			continue
		}
		u := shape.Use{Zone: core.ZoneUnknown, Shape: sh}
		if ss.Cut {
			u.Parent = nextLabel
			c.labels[ss.Name] = nextLabel
			nextLabel++
		}
		c.uses[ss.Name] = u
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	c.Registry.Freeze()

	return c, nil
}
