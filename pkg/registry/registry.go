// Package registry holds the bridge's view of the wireless node network:
// which nodes have been discovered, their DIP address and serial
// identifier, per-probe sample history, and the error counters spec.md §3
// calls for. It never talks to the radio itself — the wireless controller
// populates it.
package registry

import (
	"fmt"
	"sync"

	"github.com/jkennedy-usgs/sdi12wsn/internal/ring"
)

// MaxNodes bounds the registry the way spec.md §3 fixes an upper bound on
// the wireless network ("on the order of 10 nodes").
const MaxNodes = 10

// ProbeCount is the number of probes per node (spec.md §3: "two probes
// each").
const ProbeCount = 2

// DefaultRingSize is the per-probe sample history depth.
const DefaultRingSize = 16

// Identifier is a node's wireless serial-high/serial-low pair, the only
// thing that uniquely names a node before it has been assigned an SDI-12
// address.
type Identifier struct {
	SerialHigh uint16
	SerialLow  uint16
}

func (id Identifier) String() string {
	return fmt.Sprintf("%04X:%04X", id.SerialHigh, id.SerialLow)
}

// Node is one entry in the registry: a discovered wireless node, its
// assigned SDI-12 address, and its probe sample history.
type Node struct {
	ID      Identifier
	Addr    uint8 // numeric SDI-12 address (see addressToNum in pkg/sdi12)
	DIP     uint8 // the node's own DIP-switch address, read over the radio

	UARTErrors   uint32
	PacketErrors uint32
	CRCErrors    uint32

	probes [ProbeCount]*ring.Ring
}

// Probe returns the ring for probe index i (0-based), or nil if out of
// range.
func (n *Node) Probe(i int) *ring.Ring {
	if i < 0 || i >= ProbeCount {
		return nil
	}
	return n.probes[i]
}

// Registry is the bridge's fixed-capacity node table, guarded by a single
// mutex the same way the teacher's bus manager guards its node map.
type Registry struct {
	mu       sync.Mutex
	ringSize int
	nodes    map[uint8]*Node // keyed by numeric SDI-12 address
}

// New constructs an empty registry with the given per-probe ring size.
func New(ringSize int) *Registry {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Registry{
		ringSize: ringSize,
		nodes:    make(map[uint8]*Node),
	}
}

// Add registers a newly discovered node at addr. Returns
// [ErrRegistryFull] if the registry is already at [MaxNodes] and addr is
// new.
func (r *Registry) Add(addr uint8, id Identifier, dip uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[addr]; !exists && len(r.nodes) >= MaxNodes {
		return ErrRegistryFull
	}

	n := &Node{ID: id, Addr: addr, DIP: dip}
	for i := range n.probes {
		n.probes[i] = ring.New(r.ringSize)
	}
	r.nodes[addr] = n
	return nil
}

// Lookup returns the node registered at addr, or nil if none.
func (r *Registry) Lookup(addr uint8) *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[addr]
}

// Remove drops a node from the registry (e.g. after repeated radio
// timeouts exceed policy).
func (r *Registry) Remove(addr uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, addr)
}

// Len returns the number of currently registered nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// RecordSample appends a sample to probe i of the node at addr, marking it
// good or bad per the caller's sample-validation verdict (pkg/wireless).
// Returns [ErrNodeNotFound] if addr isn't registered.
func (r *Registry) RecordSample(addr uint8, probe int, value uint16, good bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	if !ok {
		return ErrNodeNotFound
	}
	ring := n.Probe(probe)
	if ring == nil {
		return ErrNodeNotFound
	}
	ring.Add(value, good)
	return nil
}

// RecordError increments one of a node's diagnostic counters.
func (r *Registry) RecordError(addr uint8, kind ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	if !ok {
		return
	}
	switch kind {
	case ErrorUART:
		n.UARTErrors++
	case ErrorPacket:
		n.PacketErrors++
	case ErrorCRC:
		n.CRCErrors++
	}
}

// Snapshot returns a copy of every registered node, for the diagnostics
// surface. Identity and error counters are copied as of the call; the
// probe rings are not copied and stay shared with the live registry.
func (r *Registry) Snapshot() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	return out
}

// ErrorKind names one of the three diagnostic counters spec.md §7 tracks
// for the wireless side.
type ErrorKind int

const (
	ErrorUART ErrorKind = iota
	ErrorPacket
	ErrorCRC
)
