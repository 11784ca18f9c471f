package scenario

import (
	"context"
	"fmt"

	"github.com/go-drift/rendercore/pkg/incrementalmount"
	"github.com/go-drift/rendercore/pkg/rendercore"
)

// Result reports the mount state after one step.
type Result struct {
	Index   int       `json:"index"`
	Op      string    `json:"op"`
	Tree    string    `json:"tree,omitempty"`
	Visible []float64 `json:"visible,omitempty"`
	Mounted []int64   `json:"mounted"`
}

// Player applies a scenario's steps to a mount state.
type Player struct {
	scenario *Scenario
	ms       *rendercore.MountState
	ext      *incrementalmount.Extension
	trees    map[string]*rendercore.RenderTree
}

// NewPlayer creates a player. When ext is non-nil every tree carries an
// incremental mount input for it.
func NewPlayer(s *Scenario, ms *rendercore.MountState, ext *incrementalmount.Extension) *Player {
	return &Player{
		scenario: s,
		ms:       ms,
		ext:      ext,
		trees:    make(map[string]*rendercore.RenderTree),
	}
}

// Play runs every step in order, calling each after a step succeeds. It
// stops at the first failing step or when ctx is done.
func (p *Player) Play(ctx context.Context, each func(Result)) error {
	for i, step := range p.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.apply(step)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op(), err)
		}
		res.Index = i
		res.Mounted = p.ms.MountedIDs()
		if each != nil {
			each(res)
		}
	}
	return nil
}

func (p *Player) apply(step Step) (Result, error) {
	res := Result{Op: step.Op()}
	switch res.Op {
	case "mount":
		tree, err := p.tree(step.Mount)
		if err != nil {
			return res, err
		}
		res.Tree = step.Mount
		return res, p.ms.Mount(tree)
	case "visible":
		res.Visible = step.Visible[:]
		return res, p.ms.NotifyVisibleBoundsChanged(ltwh(*step.Visible))
	case "unmount-all":
		return res, p.ms.UnmountAllItems()
	case "detach":
		return res, p.ms.Detach()
	case "attach":
		return res, p.ms.Attach()
	default:
		return res, fmt.Errorf("step has no action")
	}
}

// tree builds name once so mounting it again is recognized as the same tree.
func (p *Player) tree(name string) (*rendercore.RenderTree, error) {
	if tree, ok := p.trees[name]; ok {
		return tree, nil
	}
	var prepare func(*rendercore.Builder)
	if p.ext != nil {
		prepare = func(b *rendercore.Builder) { incrementalmount.Use(b, p.ext) }
	}
	tree, err := p.scenario.Build(name, prepare)
	if err != nil {
		return nil, err
	}
	p.trees[name] = tree
	return tree, nil
}
