package testing

import (
	"fmt"

	"github.com/go-drift/rendercore/pkg/rendercore"
)

// Finder locates mount items in the mounted host hierarchy.
type Finder interface {
	// Evaluate returns all matching items under root (depth-first pre-order
	// by position within each host).
	Evaluate(root *rendercore.MountItem) []*rendercore.MountItem
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	items  []*rendercore.MountItem
	finder Finder
}

// Find evaluates finder against everything ms has mounted.
func Find(ms *rendercore.MountState, finder Finder) FinderResult {
	root := ms.RootItem()
	if root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{items: finder.Evaluate(root), finder: finder}
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *rendercore.MountItem {
	if len(r.items) == 0 {
		panic(fmt.Sprintf("Finder found no mount items: %s", r.describe()))
	}
	return r.items[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *rendercore.MountItem {
	if len(r.items) == 0 {
		return nil
	}
	return r.items[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) *rendercore.MountItem {
	if index < 0 || index >= len(r.items) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.items), r.describe()))
	}
	return r.items[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*rendercore.MountItem {
	return r.items
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.items)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.items) > 0
}

// IDs returns the render unit ids of all matches in traversal order.
func (r FinderResult) IDs() []int64 {
	ids := make([]int64, len(r.items))
	for i, item := range r.items {
		ids[i] = item.RenderUnit().ID
	}
	return ids
}

// Content returns the content of the first match. Panics if no matches.
func (r FinderResult) Content() rendercore.Content {
	return r.First().Content()
}

// --- Concrete finders ---

type idFinder struct {
	id int64
}

func (f *idFinder) Evaluate(root *rendercore.MountItem) []*rendercore.MountItem {
	return collectMatches(root, func(item *rendercore.MountItem) bool {
		return item.RenderUnit().ID == f.id
	})
}

func (f *idFinder) Description() string {
	return fmt.Sprintf("ByID(%d)", f.id)
}

// ByID returns a finder that matches the item mounted for render unit id.
func ByID(id int64) Finder {
	return &idFinder{id: id}
}

type typeFinder struct {
	contentType rendercore.ContentType
}

func (f *typeFinder) Evaluate(root *rendercore.MountItem) []*rendercore.MountItem {
	return collectMatches(root, func(item *rendercore.MountItem) bool {
		return item.RenderUnit().Type == f.contentType
	})
}

func (f *typeFinder) Description() string {
	return fmt.Sprintf("ByType(%s)", f.contentType)
}

// ByType returns a finder that matches items of the given content type.
func ByType(t rendercore.ContentType) Finder {
	return &typeFinder{contentType: t}
}

type predicateFinder struct {
	fn   func(*rendercore.MountItem) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *rendercore.MountItem) []*rendercore.MountItem {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate returns a finder that matches items satisfying fn.
func ByPredicate(fn func(*rendercore.MountItem) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// Unbound matches mounted items that are currently unbound, as after Detach.
func Unbound() Finder {
	return &predicateFinder{
		fn:   func(item *rendercore.MountItem) bool { return !item.IsBound() },
		desc: "Unbound()",
	}
}

// descendantFinder finds items matching 'matching' that are mounted,
// directly or transitively, inside items matching 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *rendercore.MountItem) []*rendercore.MountItem {
	ancestors := f.of.Evaluate(root)
	if len(ancestors) == 0 {
		return nil
	}
	var results []*rendercore.MountItem
	seen := make(map[*rendercore.MountItem]bool)
	for _, ancestor := range ancestors {
		// Search within each ancestor's subtree (skip the ancestor itself)
		for _, child := range childItems(ancestor) {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches items satisfying 'matching'
// that are mounted inside items matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// childItems returns the items mounted in item's content when it is a host.
func childItems(item *rendercore.MountItem) []*rendercore.MountItem {
	host, ok := item.Content().(*rendercore.Host)
	if !ok {
		return nil
	}
	return host.Items()
}

// collectMatches performs depth-first pre-order traversal, collecting
// items that satisfy the predicate.
func collectMatches(root *rendercore.MountItem, predicate func(*rendercore.MountItem) bool) []*rendercore.MountItem {
	var results []*rendercore.MountItem
	walkItems(root, func(item *rendercore.MountItem) bool {
		if predicate(item) {
			results = append(results, item)
		}
		return true
	})
	return results
}

// walkItems performs a depth-first pre-order traversal of the host hierarchy.
// The visitor returns false to stop descending.
func walkItems(root *rendercore.MountItem, visitor func(*rendercore.MountItem) bool) {
	if !visitor(root) {
		return
	}
	for _, child := range childItems(root) {
		walkItems(child, visitor)
	}
}
