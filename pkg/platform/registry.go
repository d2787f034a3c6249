package platform

import (
	"sort"

	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
)

// Registry maps platform identifiers to adapter factories. It is built
// once at startup and never mutated, so it is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds a registry from the given factories. The map is
// copied so later mutation of the argument cannot affect the registry.
func NewRegistry(factories map[string]Factory) *Registry {
	copied := make(map[string]Factory, len(factories))
	for name, f := range factories {
		copied[name] = f
	}
	return &Registry{factories: copied}
}

// Resolve returns the factory for the given platform, or a typed
// platform_unsupported error.
func (r *Registry) Resolve(platform string) (Factory, error) {
	f, ok := r.factories[platform]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeUnsupported, "platform %q is not supported", platform)
	}
	return f, nil
}

// Supported returns the sorted list of registered platform identifiers.
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
