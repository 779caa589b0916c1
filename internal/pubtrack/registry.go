package pubtrack

import (
	"fmt"
	"sort"
)

// Resource describes one addressable collection of the pubtrack API: its URL
// segment and the names of the resources nested directly beneath a single
// record, e.g. publications/<uuid>/authors/.
type Resource struct {
	// Name is the URL segment of the resource, without slashes.
	Name string

	// Children lists the resource names reachable beneath a record of this
	// resource. Every entry must itself be registered before Resolve.
	Children []string
}

// Registry holds the resource descriptors of one API and validates that their
// child references form a closed set. Registration and resolution happen once
// during client construction; afterwards the registry is read-only, so
// endpoint navigation never mutates shared state.
type Registry struct {
	resources map[string]Resource
	resolved  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]Resource)}
}

// Add registers a resource descriptor. Registering the same name twice is an
// error, as silently replacing a descriptor would hide wiring mistakes.
func (r *Registry) Add(res Resource) error {
	if res.Name == "" {
		return fmt.Errorf("resource name must not be empty")
	}
	if _, ok := r.resources[res.Name]; ok {
		return fmt.Errorf("resource %q registered twice", res.Name)
	}
	r.resources[res.Name] = res
	r.resolved = false
	return nil
}

// Resolve verifies that every child name refers to a registered resource.
// It must be called after the last Add; lookups fail until it has succeeded.
func (r *Registry) Resolve() error {
	for _, res := range r.resources {
		for _, child := range res.Children {
			if _, ok := r.resources[child]; !ok {
				return fmt.Errorf("%w: resource %q names unknown child %q", ErrUnknownResource, res.Name, child)
			}
		}
	}
	r.resolved = true
	return nil
}

// Lookup returns the descriptor for name. It fails before Resolve has run so
// that no endpoint can be built from an unvalidated registry.
func (r *Registry) Lookup(name string) (Resource, error) {
	if !r.resolved {
		return Resource{}, fmt.Errorf("registry not resolved")
	}
	res, ok := r.resources[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return res, nil
}

// Names returns the registered resource names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hasChild reports whether child is listed among parent's children.
func (r *Registry) hasChild(parent Resource, child string) bool {
	for _, name := range parent.Children {
		if name == child {
			return true
		}
	}
	return false
}

// DefaultRegistry returns the resource set of the pubtrack service:
// publications with nested authors, stand-alone authors, authorings and
// meta-authors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, res := range []Resource{
		{Name: "publications", Children: []string{"authors"}},
		{Name: "authors"},
		{Name: "authorings"},
		{Name: "meta-authors"},
	} {
		// Add cannot fail here: names are non-empty and unique.
		if err := r.Add(res); err != nil {
			panic(err)
		}
	}
	if err := r.Resolve(); err != nil {
		panic(err)
	}
	return r
}
