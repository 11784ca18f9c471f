package rendercore

// RootHostID is the render unit id of every render tree root.
const RootHostID int64 = 0

// Binder binds one aspect of a render unit to its content.
//
// Mount binders run when content is mounted and unmounted. Attach binders run
// when content is bound to and unbound from the window. Binders are diffed by
// Key when a mounted unit is replaced by a new one with the same id.
type Binder struct {
	Key    string
	Bind   func(content Content, layoutData any)
	Unbind func(content Content, layoutData any)
	// ShouldUpdate reports whether the binder must be rerun when prev is
	// replaced by next. A nil ShouldUpdate always reruns.
	ShouldUpdate func(prev, next *RenderUnit, prevLayoutData, nextLayoutData any) bool
}

func (b Binder) bind(content Content, layoutData any) {
	if b.Bind != nil {
		b.Bind(content, layoutData)
	}
}

func (b Binder) unbind(content Content, layoutData any) {
	if b.Unbind != nil {
		b.Unbind(content, layoutData)
	}
}

// RenderUnit describes one piece of mountable content.
type RenderUnit struct {
	ID          int64
	Type        ContentType
	Description string
	// Create builds fresh content when the pool has none. A nil Create
	// yields an empty leaf.
	Create func() Content
	// HostsRenderTrees marks content that hosts nested render trees and
	// therefore wants visible bounds notifications.
	HostsRenderTrees bool

	MountBinders  []Binder
	AttachBinders []Binder
}

// NewHostUnit returns a render unit producing *Host content.
func NewHostUnit(id int64) *RenderUnit {
	return &RenderUnit{
		ID:          id,
		Type:        HostContentType,
		Description: "host",
		Create:      func() Content { return NewHost() },
	}
}

// CreateContent builds new content for the unit.
func (u *RenderUnit) CreateContent() Content {
	if u.Create != nil {
		if c := u.Create(); c != nil {
			return c
		}
	}
	return NewLeaf(nil)
}

func (u *RenderUnit) mountBinders(content Content, layoutData any) {
	for _, b := range u.MountBinders {
		b.bind(content, layoutData)
	}
}

func (u *RenderUnit) unmountBinders(content Content, layoutData any) {
	for i := len(u.MountBinders) - 1; i >= 0; i-- {
		u.MountBinders[i].unbind(content, layoutData)
	}
}

func (u *RenderUnit) attachBinders(content Content, layoutData any) {
	for _, b := range u.AttachBinders {
		b.bind(content, layoutData)
	}
}

func (u *RenderUnit) detachBinders(content Content, layoutData any) {
	for i := len(u.AttachBinders) - 1; i >= 0; i-- {
		u.AttachBinders[i].unbind(content, layoutData)
	}
}

// updateBinders moves content from prev to u, rerunning only the binders
// that changed. When the item was not bound, every attach binder of u runs.
func (u *RenderUnit) updateBinders(content Content, prev *RenderUnit, prevLayoutData, nextLayoutData any, isBound bool) {
	attachUnbind, attachBind := diffBinders(prev, u, prev.AttachBinders, u.AttachBinders, prevLayoutData, nextLayoutData)
	mountUnbind, mountBind := diffBinders(prev, u, prev.MountBinders, u.MountBinders, prevLayoutData, nextLayoutData)

	if isBound {
		for i := len(attachUnbind) - 1; i >= 0; i-- {
			attachUnbind[i].unbind(content, prevLayoutData)
		}
	}
	for i := len(mountUnbind) - 1; i >= 0; i-- {
		mountUnbind[i].unbind(content, prevLayoutData)
	}
	for _, b := range mountBind {
		b.bind(content, nextLayoutData)
	}
	if !isBound {
		attachBind = u.AttachBinders
	}
	for _, b := range attachBind {
		b.bind(content, nextLayoutData)
	}
}

func diffBinders(prevUnit, nextUnit *RenderUnit, prev, next []Binder, prevLayoutData, nextLayoutData any) (toUnbind, toBind []Binder) {
	prevByKey := make(map[string]Binder, len(prev))
	for _, b := range prev {
		prevByKey[b.Key] = b
	}
	kept := make(map[string]bool, len(next))
	for _, b := range next {
		old, ok := prevByKey[b.Key]
		if !ok {
			toBind = append(toBind, b)
			continue
		}
		kept[b.Key] = true
		if b.ShouldUpdate == nil || b.ShouldUpdate(prevUnit, nextUnit, prevLayoutData, nextLayoutData) {
			toUnbind = append(toUnbind, old)
			toBind = append(toBind, b)
		}
	}
	for _, b := range prev {
		if !kept[b.Key] {
			toUnbind = append(toUnbind, b)
		}
	}
	return toUnbind, toBind
}
