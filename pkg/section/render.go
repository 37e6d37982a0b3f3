package section

// Node is an opaque handle to whatever the host's renderer produced for a
// single item (a DOM element, a terminal cell box, a texture). The engine
// never inspects nodes; it only attaches and detaches them.
type Node any

// Container hosts the nodes of shown sections. Implementations are owned by
// the host (the engine obtains one per attach) and must tolerate Detach of a
// node that was already removed.
type Container interface {
	Attach(n Node)
	Detach(n Node)
}

// Dimensions places an item within the overall scroll area. X and Y are
// absolute offsets from the gallery origin, so a container can position
// nodes without knowing about sections.
type Dimensions struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Renderer produces a node for one item. It is invoked lazily, only for
// items inside a shown section. When placeholder is true the renderer should
// take its cheap path (no image decode); the engine requests this while the
// user is scrolling too fast to see full content.
//
// Renderer errors are deliberately not part of the signature: a renderer
// that can fail should record the failure in its own node and report it
// through host channels. The engine does not mediate render failures.
type Renderer func(id string, data any, dims Dimensions, placeholder bool) Node

// ClickHandler receives the id and global ordinal of a clicked item.
type ClickHandler func(id string, itemIndex int)
