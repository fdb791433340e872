package device

import (
	"sort"

	"github.com/pkg/errors"
)

// Constructor opens a backend. config is backend specific and may be empty.
type Constructor func(config string) (API, error)

var registeredConstructors = make(map[string]Constructor)

// Register a backend under name. Call it from the backend package's init.
func Register(name string, constructor Constructor) {
	registeredConstructors[name] = constructor
}

// Open the backend registered under name.
func Open(name, config string) (API, error) {
	constructor, found := registeredConstructors[name]
	if !found {
		return nil, errors.Errorf("can't find backend %q (registered: %v) -- maybe import it with "+
			"import _ \"github.com/notargets/KernelHarness/device/%s\"?", name, Registered(), name)
	}
	api, err := constructor(config)
	if err != nil {
		return nil, errors.Wrapf(err, "opening backend %q", name)
	}
	return api, nil
}

// Registered lists the registered backend names, sorted.
func Registered() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
