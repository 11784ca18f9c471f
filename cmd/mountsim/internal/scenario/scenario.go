// Package scenario loads and plays mountsim replay files.
//
// A scenario declares a root host, a set of named render trees and a list
// of steps applied in order to one mount state:
//
//	name: feed
//	root: {width: 100, height: 300}
//	trees:
//	  first:
//	    - {id: 1, bounds: [0, 0, 100, 120], type: host}
//	    - {id: 2, parent: 1, bounds: [0, 0, 100, 60]}
//	steps:
//	  - mount: first
//	  - visible: [0, 90, 100, 300]
//	  - unmount_all: true
//
// Bounds are [left, top, width, height] relative to the parent.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/rendercore/pkg/rendercore"
	"github.com/go-drift/rendercore/pkg/rendering"
)

// DefaultItemType is the content type of items that do not name one.
const DefaultItemType = "leaf"

// Scenario is a parsed replay file.
type Scenario struct {
	Name  string            `yaml:"name" validate:"required"`
	Root  Size              `yaml:"root"`
	Trees map[string][]Item `yaml:"trees" validate:"required,min=1,dive,keys,required,endkeys,dive"`
	Steps []Step            `yaml:"steps" validate:"required,min=1,dive"`
}

// Size is the root host size.
type Size struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
}

// Item is one render unit of a tree.
type Item struct {
	ID     int64      `yaml:"id" validate:"gt=0"`
	Parent int64      `yaml:"parent" validate:"gte=0"`
	Type   string     `yaml:"type"`
	Bounds [4]float64 `yaml:"bounds"`
	// Nested marks leaves hosting their own render trees.
	Nested bool `yaml:"nested"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	Mount      string      `yaml:"mount,omitempty"`
	Visible    *[4]float64 `yaml:"visible,omitempty"`
	UnmountAll bool        `yaml:"unmount_all,omitempty"`
	Detach     bool        `yaml:"detach,omitempty"`
	Attach     bool        `yaml:"attach,omitempty"`
}

// Op names the action of s.
func (s Step) Op() string {
	switch {
	case s.Mount != "":
		return "mount"
	case s.Visible != nil:
		return "visible"
	case s.UnmountAll:
		return "unmount-all"
	case s.Detach:
		return "detach"
	case s.Attach:
		return "attach"
	default:
		return ""
	}
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Mount != "", s.Visible != nil, s.UnmountAll, s.Detach, s.Attach} {
		if set {
			n++
		}
	}
	return n
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints, step shapes and tree references.
func (s *Scenario) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	var errs []error
	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			errs = append(errs, fmt.Errorf("step %d: want exactly one action, got %d", i, n))
			continue
		}
		if step.Mount != "" {
			if _, ok := s.Trees[step.Mount]; !ok {
				errs = append(errs, fmt.Errorf("step %d: unknown tree %q", i, step.Mount))
			}
		}
	}
	return errors.Join(errs...)
}

// Build turns the named tree into a render tree. prepare, when non-nil, can
// attach extensions to the builder before it is built.
func (s *Scenario) Build(name string, prepare func(*rendercore.Builder)) (*rendercore.RenderTree, error) {
	items, ok := s.Trees[name]
	if !ok {
		return nil, fmt.Errorf("unknown tree %q", name)
	}
	b := rendercore.NewBuilder(rendercore.NewHostUnit(rendercore.RootHostID), s.Root.Width, s.Root.Height)
	for _, item := range items {
		b.Add(item.Parent, item.unit(), ltwh(item.Bounds), nil)
	}
	if prepare != nil {
		prepare(b)
	}
	tree, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("tree %q: %w", name, err)
	}
	return tree, nil
}

// NewRootHost returns a root host sized and fully visible per the scenario.
func (s *Scenario) NewRootHost() *rendercore.Host {
	h := rendercore.NewHost()
	bounds := rendering.RectFromLTWH(0, 0, s.Root.Width, s.Root.Height)
	h.SetBounds(bounds)
	h.SetLocalVisibleRect(bounds)
	return h
}

func (it Item) unit() *rendercore.RenderUnit {
	if it.Type == string(rendercore.HostContentType) {
		return rendercore.NewHostUnit(it.ID)
	}
	t := it.Type
	if t == "" {
		t = DefaultItemType
	}
	return &rendercore.RenderUnit{
		ID:               it.ID,
		Type:             rendercore.ContentType(t),
		Description:      t,
		HostsRenderTrees: it.Nested,
	}
}

func ltwh(v [4]float64) rendering.Rect {
	return rendering.RectFromLTWH(v[0], v[1], v[2], v[3])
}
