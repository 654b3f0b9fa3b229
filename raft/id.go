// Package raft implements the per-node role driver described in the
// project specification: the state machine that sits between inbound
// protocol events and the pure Raft decision core, executing the
// effects the core requests.
package raft

import "fmt"

// NodeID is the opaque address by which peers reach a node. It is
// structurally either a bare name or a (name, host) pair, and must be
// globally unique within a Raft group.
type NodeID struct {
	Name string
	Host string
}

// String renders the identifier for logging and error messages.
func (id NodeID) String() string {
	if id.Host == "" {
		return id.Name
	}

	return fmt.Sprintf("%s@%s", id.Name, id.Host)
}

// IsZero reports whether id is the zero value (empty name and host).
func (id NodeID) IsZero() bool {
	return id.Name == "" && id.Host == ""
}
