package sdi12wsn

import "errors"

// Sentinel errors returned by the hardware adapters and the wireless
// transport. The protocol core itself never returns an error across its
// boundary (spec: "no errors cross the core boundary") — these are for the
// external collaborators and the CLI wiring.
var (
	ErrIllegalArgument = errors.New("illegal argument")
	ErrTimeout         = errors.New("operation timed out")
	ErrIllegalBaudrate = errors.New("illegal baud rate for SDI-12 line (must be 1200)")
	ErrNoNodesFound    = errors.New("no wireless nodes responded to discovery")
	ErrNodeNotFound    = errors.New("node address not present in registry")
	ErrRegistryFull    = errors.New("node registry is at capacity")
	ErrSyscall         = errors.New("syscall failed")
	ErrInvalidState    = errors.New("driver not ready")
)
