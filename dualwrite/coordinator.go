// Package dualwrite runs the derived half of every logical mutation: the
// primary write has already committed when Propagate is called, and the
// projection write is best-effort. What happens on failure is declared per
// mutation kind in one policy table instead of being scattered across
// call-site try/catch shapes.
package dualwrite

import (
	"context"

	"github.com/rs/zerolog"

	"polisync/fault"
	"polisync/graph"
)

// Kind names one logical mutation.
type Kind string

const (
	CreateCustomer     Kind = "create_customer"
	UpdateCustomer     Kind = "update_customer"
	DeactivateCustomer Kind = "deactivate_customer"
	CreatePolicy       Kind = "create_policy"
	CreateClaim        Kind = "create_claim"
)

// FailureMode decides whether a derived-write failure reaches the caller.
type FailureMode int

const (
	// Swallow logs the failure and reports the mutation as successful.
	Swallow FailureMode = iota
	// Surface returns the failure to the caller.
	Surface
)

// Policy is the per-mutation derived-failure contract.
type Policy struct {
	OnDerivedFailure FailureMode
	// MarkPrimary flags the primary record with a sync-failure marker so
	// reconciliation (or an operator) can find it.
	MarkPrimary bool
}

// DefaultPolicies reproduces the source system's asymmetry: customer paths
// swallow silently, the policy path swallows but marks, and the claim path
// treats the projection as a hard dependency. An open product question, kept
// reviewable here rather than implicit in control flow.
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		CreateCustomer:     {OnDerivedFailure: Swallow},
		UpdateCustomer:     {OnDerivedFailure: Swallow},
		DeactivateCustomer: {OnDerivedFailure: Swallow},
		CreatePolicy:       {OnDerivedFailure: Swallow, MarkPrimary: true},
		CreateClaim:        {OnDerivedFailure: Surface, MarkPrimary: true},
	}
}

// Status is the typed outcome of the derived write.
type Status int

const (
	Synced Status = iota
	Deferred
)

func (s Status) String() string {
	if s == Synced {
		return "synced"
	}
	return "deferred"
}

// Outcome reports how the derived write went. Reason is set when deferred.
type Outcome struct {
	Status Status
	Reason string
}

// Marker flags a primary record whose derived write failed.
type Marker interface {
	MarkSyncFailure(ctx context.Context, collection, id, detail string) error
}

// Target locates the primary record backing the mutation.
type Target struct {
	Collection string
	RecordID   string
}

// Coordinator applies derived writes under the per-mutation policy table.
type Coordinator struct {
	graph    graph.Applier
	marker   Marker
	log      zerolog.Logger
	policies map[Kind]Policy
}

func NewCoordinator(g graph.Applier, marker Marker, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		graph:    g,
		marker:   marker,
		log:      log,
		policies: DefaultPolicies(),
	}
}

// WithPolicies overrides the policy table. Unlisted kinds swallow.
func (c *Coordinator) WithPolicies(policies map[Kind]Policy) *Coordinator {
	c.policies = policies
	return c
}

// Propagate runs fn inside one scoped graph unit of work. The returned error
// is non-nil only when the kind's policy surfaces derived failures; the
// Outcome always tells the truth.
func (c *Coordinator) Propagate(ctx context.Context, kind Kind, target Target, fn func(m graph.Mutator) error) (Outcome, error) {
	err := c.graph.Apply(ctx, fn)
	if err == nil {
		return Outcome{Status: Synced}, nil
	}

	pol := c.policies[kind]

	c.log.Warn().
		Str("mutation", string(kind)).
		Str("collection", target.Collection).
		Str("record_id", target.RecordID).
		Err(err).
		Msg("derived write deferred")

	if pol.MarkPrimary && target.RecordID != "" {
		if merr := c.marker.MarkSyncFailure(ctx, target.Collection, target.RecordID, err.Error()); merr != nil {
			c.log.Error().
				Str("mutation", string(kind)).
				Str("record_id", target.RecordID).
				Err(merr).
				Msg("failed to persist sync-failure marker")
		}
	}

	out := Outcome{Status: Deferred, Reason: err.Error()}
	if pol.OnDerivedFailure == Surface {
		return out, fault.Wrap(fault.Unavailable, "graph_sync_failed", err)
	}
	return out, nil
}
