// Package scene holds the in-memory object graph the bridge mutates.
//
// Objects form a tree addressed by slash paths ("Player/Arm/Hand"). Each
// object carries named components whose properties are typed by
// coerce.Descriptor, so every mutation goes through the coercion engine.
package scene

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fentz26/scenebridge/internal/coerce"
)

// Property is one settable member: its descriptor and current value.
type Property struct {
	Desc  coerce.Descriptor
	Value any
}

// Component is a named bag of typed properties attached to an object.
type Component struct {
	Name  string
	props map[string]*Property
}

// Property returns a component property by name.
func (c *Component) Property(name string) (*Property, bool) {
	p, ok := c.props[name]
	return p, ok
}

// PropertyNames returns the component's property names, sorted.
func (c *Component) PropertyNames() []string {
	names := make([]string, 0, len(c.props))
	for n := range c.props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Object is one node of the scene tree.
type Object struct {
	Name       string
	parent     *Object
	children   []*Object
	components map[string]*Component
}

// Path returns the object's slash path from the root.
func (o *Object) Path() string {
	if o.parent == nil {
		return o.Name
	}
	return o.parent.Path() + "/" + o.Name
}

// Graph is the scene graph. All access is mutex-guarded; the bridge loop is
// single-threaded but the watch UI reads concurrently.
type Graph struct {
	mu    sync.Mutex
	roots []*Object

	engine *coerce.Engine
	types  map[string][]coerce.Descriptor
}

// New creates an empty graph wired to the given asset resolver. The graph
// itself serves as the engine's object resolver.
func New(assets coerce.AssetResolver) *Graph {
	g := &Graph{types: defaultComponentTypes()}
	g.engine = &coerce.Engine{Objects: g, Assets: assets}
	return g
}

// defaultComponentTypes is the closed set of component descriptors the
// bridge knows how to attach.
func defaultComponentTypes() map[string][]coerce.Descriptor {
	return map[string][]coerce.Descriptor{
		"Transform": {
			{Name: "position", Kind: coerce.KindVec3},
			{Name: "rotation", Kind: coerce.KindVec3},
			{Name: "scale", Kind: coerce.KindVec3},
		},
		"Light": {
			{Name: "color", Kind: coerce.KindColor},
			{Name: "intensity", Kind: coerce.KindFloat},
			{Name: "mode", Kind: coerce.KindEnum, Enum: []string{"Baked", "Mixed", "Realtime"}},
			{Name: "enabled", Kind: coerce.KindBool},
		},
		"Renderer": {
			{Name: "material", Kind: coerce.KindRef},
			{Name: "visible", Kind: coerce.KindBool},
			{Name: "layer", Kind: coerce.KindInt},
		},
		"Tag": {
			{Name: "label", Kind: coerce.KindString},
			{Name: "keywords", Kind: coerce.KindArray, Elem: &coerce.Descriptor{Kind: coerce.KindString}},
		},
		"Physics": {
			{Name: "mass", Kind: coerce.KindFloat},
			{Name: "velocity", Kind: coerce.KindVec3},
			{Name: "anchors", Kind: coerce.KindArray, Elem: &coerce.Descriptor{Kind: coerce.KindVec2}},
			{Name: "target", Kind: coerce.KindRef},
		},
	}
}

// ComponentTypes returns the attachable component type names, sorted.
func (g *Graph) ComponentTypes() []string {
	names := make([]string, 0, len(g.types))
	for n := range g.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	// ErrNotFound indicates a missing object, component, or property.
	ErrNotFound = fmt.Errorf("not found")
	// ErrExists indicates a create collision.
	ErrExists = fmt.Errorf("already exists")
)

// find walks a slash path. Caller holds the lock.
func (g *Graph) find(path string) *Object {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil
	}
	var cur *Object
	for _, root := range g.roots {
		if root.Name == parts[0] {
			cur = root
			break
		}
	}
	for _, part := range parts[1:] {
		if cur == nil {
			return nil
		}
		var next *Object
		for _, child := range cur.children {
			if child.Name == part {
				next = child
				break
			}
		}
		cur = next
	}
	return cur
}

// Create adds an object at path, creating intermediate objects as needed.
// Creating an existing path is an error.
func (g *Graph) Create(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.find(path) != nil {
		return fmt.Errorf("object %q: %w", path, ErrExists)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return fmt.Errorf("empty path")
	}

	var parent *Object
	for _, root := range g.roots {
		if root.Name == parts[0] {
			parent = root
			break
		}
	}
	if parent == nil {
		parent = &Object{Name: parts[0], components: make(map[string]*Component)}
		g.roots = append(g.roots, parent)
	}
	for _, part := range parts[1:] {
		var next *Object
		for _, child := range parent.children {
			if child.Name == part {
				next = child
				break
			}
		}
		if next == nil {
			next = &Object{Name: part, parent: parent, components: make(map[string]*Component)}
			parent.children = append(parent.children, next)
		}
		parent = next
	}
	return nil
}

// Delete removes the object at path and its subtree.
func (g *Graph) Delete(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	obj := g.find(path)
	if obj == nil {
		return fmt.Errorf("object %q: %w", path, ErrNotFound)
	}
	if obj.parent == nil {
		for i, root := range g.roots {
			if root == obj {
				g.roots = append(g.roots[:i], g.roots[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("object %q: %w", path, ErrNotFound)
	}
	siblings := obj.parent.children
	for i, child := range siblings {
		if child == obj {
			obj.parent.children = append(siblings[:i], siblings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("object %q: %w", path, ErrNotFound)
}

// AttachComponent attaches a component of a known type to the object at
// path, with all properties at their zero values.
func (g *Graph) AttachComponent(path, typeName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	obj := g.find(path)
	if obj == nil {
		return fmt.Errorf("object %q: %w", path, ErrNotFound)
	}
	descs, ok := g.types[typeName]
	if !ok {
		return fmt.Errorf("component type %q: %w (known: %s)", typeName, ErrNotFound, strings.Join(g.ComponentTypes(), ", "))
	}
	if _, exists := obj.components[typeName]; exists {
		return fmt.Errorf("component %q on %q: %w", typeName, path, ErrExists)
	}

	comp := &Component{Name: typeName, props: make(map[string]*Property)}
	for _, d := range descs {
		comp.props[d.Name] = &Property{Desc: d, Value: coerce.ZeroValue(d)}
	}
	obj.components[typeName] = comp
	return nil
}

// property locates the property behind path/component/name. Caller holds
// the lock.
func (g *Graph) property(path, component, name string) (*Property, error) {
	obj := g.find(path)
	if obj == nil {
		return nil, fmt.Errorf("object %q: %w", path, ErrNotFound)
	}
	comp, ok := obj.components[component]
	if !ok {
		return nil, fmt.Errorf("component %q on %q: %w", component, path, ErrNotFound)
	}
	prop, ok := comp.Property(name)
	if !ok {
		return nil, fmt.Errorf("property %q on %s/%s: %w (has: %s)",
			name, path, component, ErrNotFound, strings.Join(comp.PropertyNames(), ", "))
	}
	return prop, nil
}

// GetProperty returns the current value of a property.
func (g *Graph) GetProperty(path, component, name string) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prop, err := g.property(path, component, name)
	if err != nil {
		return nil, err
	}
	return prop.Value, nil
}

// SetProperty coerces raw against the property's descriptor and stores the
// result. On an array element failure the resized partial slice is still
// applied, matching the coercion engine's documented tail behavior; the
// error is returned either way.
func (g *Graph) SetProperty(path, component, name string, raw any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	prop, err := g.property(path, component, name)
	if err != nil {
		return err
	}
	// Name the field after the requested property for diagnostics.
	desc := prop.Desc
	desc.Name = name

	value, cerr := g.engine.Coerce(desc, raw)
	if cerr != nil {
		if desc.Kind == coerce.KindArray && value != nil {
			prop.Value = value
		}
		return cerr
	}
	prop.Value = value
	return nil
}

// SetProperties applies a map of property values on one component,
// reporting each field's outcome separately. Returned slices are parallel
// and ordered by property name.
func (g *Graph) SetProperties(path, component string, values map[string]any) (names []string, errs []error) {
	names = make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	errs = make([]error, len(names))
	for i, n := range names {
		errs[i] = g.SetProperty(path, component, n, values[n])
	}
	return names, errs
}

// Components returns the component names on the object at path, sorted.
func (g *Graph) Components(path string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	obj := g.find(path)
	if obj == nil {
		return nil, fmt.Errorf("object %q: %w", path, ErrNotFound)
	}
	names := make([]string, 0, len(obj.components))
	for n := range obj.components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Find returns the paths of all objects whose name contains query,
// case-insensitively, sorted.
func (g *Graph) Find(query string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	q := strings.ToLower(query)
	var paths []string
	var walk func(o *Object)
	walk = func(o *Object) {
		if strings.Contains(strings.ToLower(o.Name), q) {
			paths = append(paths, o.Path())
		}
		for _, child := range o.children {
			walk(child)
		}
	}
	for _, root := range g.roots {
		walk(root)
	}
	sort.Strings(paths)
	return paths
}

// Tree renders the subtree at path (or the whole graph for "") as an
// indented listing with component names.
func (g *Graph) Tree(path string, recursive bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var start []*Object
	if path == "" {
		start = g.roots
	} else {
		obj := g.find(path)
		if obj == nil {
			return "", fmt.Errorf("object %q: %w", path, ErrNotFound)
		}
		start = []*Object{obj}
	}

	var b strings.Builder
	var walk func(o *Object, depth int)
	walk = func(o *Object, depth int) {
		indent := strings.Repeat("  ", depth)
		comps := make([]string, 0, len(o.components))
		for n := range o.components {
			comps = append(comps, n)
		}
		sort.Strings(comps)
		if len(comps) > 0 {
			fmt.Fprintf(&b, "%s%s [%s]\n", indent, o.Name, strings.Join(comps, ", "))
		} else {
			fmt.Fprintf(&b, "%s%s\n", indent, o.Name)
		}
		if recursive || depth == 0 {
			for _, child := range o.children {
				walk(child, depth+1)
			}
		}
	}
	for _, o := range start {
		walk(o, 0)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// --- coerce.ObjectResolver ---

// ResolveObject locates an addressable object for the coercion engine.
func (g *Graph) ResolveObject(path string) (any, bool) {
	// The engine calls back into the graph while SetProperty holds the
	// lock, so no locking here; find does not mutate.
	obj := g.find(path)
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// ResolveMember locates a named component on an addressable object.
func (g *Graph) ResolveMember(path, member string) (any, bool) {
	obj := g.find(path)
	if obj == nil {
		return nil, false
	}
	comp, ok := obj.components[member]
	if !ok {
		return nil, false
	}
	return comp, true
}
