package registry

import "errors"

var (
	// ErrRegistryFull is returned by Add once MaxNodes nodes are already
	// registered.
	ErrRegistryFull = errors.New("registry: at node capacity")
	// ErrNodeNotFound is returned by operations addressing a node that
	// isn't registered.
	ErrNodeNotFound = errors.New("registry: node not found")
)
