// Package description holds the narrow, read-only server and topology
// descriptions that the Operation Execution Core consumes from the
// Topology subsystem. The core never mutates these types; it only
// inspects them to decide where and how to run an operation.
package description

import (
	"fmt"
	"time"
)

// ServerKind represents the type of a single server in a deployment.
type ServerKind uint32

// The kinds of servers that can appear in a deployment.
const (
	ServerKindUnknown      ServerKind = 0
	ServerKindStandalone   ServerKind = 1
	ServerKindRSPrimary    ServerKind = 2
	ServerKindRSSecondary  ServerKind = 4
	ServerKindMongos       ServerKind = 8
	ServerKindLoadBalancer ServerKind = 16
)

func (k ServerKind) String() string {
	switch k {
	case ServerKindStandalone:
		return "Standalone"
	case ServerKindRSPrimary:
		return "RSPrimary"
	case ServerKindRSSecondary:
		return "RSSecondary"
	case ServerKindMongos:
		return "Mongos"
	case ServerKindLoadBalancer:
		return "LoadBalancer"
	}
	return "Unknown"
}

// TopologyKind represents the shape of the deployment the servers belong to.
type TopologyKind uint32

// The topology configurations the core needs to branch on.
const (
	TopologyKindSingle       TopologyKind = 1
	TopologyKindReplicaSet   TopologyKind = 2
	TopologyKindSharded      TopologyKind = 3
	TopologyKindLoadBalanced TopologyKind = 4
)

// WireVersionRange is the [Min, Max] wire protocol version a server
// advertises during the handshake.
type WireVersionRange struct {
	Min int32
	Max int32
}

func (r *WireVersionRange) String() string {
	if r == nil {
		return "[unknown]"
	}
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Supports reports whether the range's Max is at least the given wire
// version. Min is not consulted.
func (r *WireVersionRange) Supports(version int32) bool {
	return r != nil && r.Max >= version
}

// Server is a point-in-time description of one server in a deployment.
// It is opaque data for the core: the core never does anything with it
// besides reading these fields to decide retry and selection policy.
type Server struct {
	Addr                  string
	Kind                  ServerKind
	WireVersion           *WireVersionRange
	SessionTimeoutMinutes *int64
	AverageRTT            time.Duration
	AverageRTTSet         bool
	LastWriteTime         time.Time
}

// SessionsSupported reports whether this server advertises logical session
// support at all (any wire version handshake response sets this).
func (s Server) SessionsSupported() bool {
	return s.WireVersion != nil
}

// RetryableWritesSupported reports whether this server can participate in
// retryable writes: it must support sessions and must not be a standalone.
func (s Server) RetryableWritesSupported() bool {
	return s.SessionTimeoutMinutes != nil && s.Kind != ServerKindStandalone
}

// Topology is a point-in-time description of the deployment as a whole.
type Topology struct {
	Kind    TopologyKind
	Servers []Server
}

// SelectedServer pairs a server description with the topology kind it was
// selected from, which some selectors need (e.g. to distinguish a
// standalone's solitary "primary" from a replica set primary).
type SelectedServer struct {
	Server Server
	Kind   TopologyKind
}

// ServerSelector narrows a list of server candidates down to the ones
// suitable for a particular operation. The Selector Resolver builds one
// of these per operation; the Topology subsystem is responsible for
// actually applying it against live server state (description.Topology
// here is just the point-in-time snapshot passed to SelectServer).
type ServerSelector interface {
	SelectServer(Topology, []Server) ([]Server, error)
}

// ServerSelectorFunc adapts a function to a ServerSelector.
type ServerSelectorFunc func(Topology, []Server) ([]Server, error)

// SelectServer implements ServerSelector.
func (f ServerSelectorFunc) SelectServer(t Topology, candidates []Server) ([]Server, error) {
	return f(t, candidates)
}
