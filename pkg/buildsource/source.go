package buildsource

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Source checks out something to build.
type Source interface {
	// Checkout checks the source out into dest. It returns the object id of
	// the checked-out revision, or the zero hash when that does not make
	// sense for the source kind.
	Checkout(dest string) (plumbing.Hash, error)
}

// Factory creates sources for URIs it recognises.
type Factory interface {
	// Name is the registered name of the source kind.
	Name() string
	// HandlesURI reports whether this factory can fetch the given URI.
	HandlesURI(uri string) bool
	// New constructs a source for the URI with implementation-specific
	// arguments.
	New(uri string, args ...string) Source
}

var (
	factories []Factory
	names     = map[string]bool{}
)

// Register adds a factory to the registry. Factories are consulted in
// registration order; registering a name that is already taken panics.
func Register(f Factory) {
	if names[f.Name()] {
		panic(fmt.Sprintf("build source %q already registered", f.Name()))
	}
	names[f.Name()] = true
	factories = append(factories, f)
}

// Get instantiates the named factory directly.
func Get(name, uri string, args ...string) (Source, error) {
	for _, f := range factories {
		if f.Name() == name {
			return f.New(uri, args...), nil
		}
	}
	return nil, fmt.Errorf("no build source named %q", name)
}

// ForURI finds a registered factory that handles the given URI. Factories
// are tried in registration order and the first positive one wins.
func ForURI(uri string, args ...string) (Source, error) {
	for _, f := range factories {
		if f.HandlesURI(uri) {
			return f.New(uri, args...), nil
		}
	}
	return nil, fmt.Errorf("no source available for %q", uri)
}
