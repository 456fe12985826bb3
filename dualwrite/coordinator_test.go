package dualwrite

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"polisync/fault"
	"polisync/graph"
)

type fakeApplier struct {
	err    error
	called bool
}

func (f *fakeApplier) Apply(ctx context.Context, fn func(m graph.Mutator) error) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return fn(nopMutator{})
}

type nopMutator struct{}

func (nopMutator) MergeNode(context.Context, string, string, map[string]any, graph.MergeMode) error {
	return nil
}

func (nopMutator) MergeEdge(context.Context, string, string, string, string, string) error {
	return nil
}

type fakeMarker struct {
	collection string
	id         string
	detail     string
	calls      int
	err        error
}

func (f *fakeMarker) MarkSyncFailure(ctx context.Context, collection, id, detail string) error {
	f.calls++
	f.collection = collection
	f.id = id
	f.detail = detail
	return f.err
}

func newCoordinator(applier *fakeApplier, marker *fakeMarker) *Coordinator {
	return NewCoordinator(applier, marker, zerolog.Nop())
}

func TestPropagateSynced(t *testing.T) {
	applier := &fakeApplier{}
	marker := &fakeMarker{}
	c := newCoordinator(applier, marker)

	out, err := c.Propagate(context.Background(), CreateCustomer, Target{Collection: "customers", RecordID: "r1"}, func(m graph.Mutator) error {
		return m.MergeNode(context.Background(), graph.LabelCustomer, "1", nil, graph.Overwrite)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != Synced {
		t.Errorf("status = %v, want synced", out.Status)
	}
	if marker.calls != 0 {
		t.Errorf("marker written on success")
	}
}

func TestCustomerFailureSwallowedWithoutMarker(t *testing.T) {
	applier := &fakeApplier{err: errors.New("neo4j down")}
	marker := &fakeMarker{}
	c := newCoordinator(applier, marker)

	out, err := c.Propagate(context.Background(), CreateCustomer, Target{Collection: "customers", RecordID: "r1"}, nil)
	if err != nil {
		t.Fatalf("customer path must swallow, got %v", err)
	}
	if out.Status != Deferred || out.Reason == "" {
		t.Errorf("outcome = %+v, want deferred with reason", out)
	}
	if marker.calls != 0 {
		t.Errorf("customer path must not mark primary record")
	}
}

func TestPolicyFailureMarkedButSwallowed(t *testing.T) {
	applier := &fakeApplier{err: errors.New("neo4j down")}
	marker := &fakeMarker{}
	c := newCoordinator(applier, marker)

	out, err := c.Propagate(context.Background(), CreatePolicy, Target{Collection: "policies", RecordID: "p-rec"}, nil)
	if err != nil {
		t.Fatalf("policy path must swallow, got %v", err)
	}
	if out.Status != Deferred {
		t.Errorf("outcome = %+v", out)
	}
	if marker.calls != 1 || marker.collection != "policies" || marker.id != "p-rec" {
		t.Errorf("marker = %+v, want one call on policies/p-rec", marker)
	}
}

func TestClaimFailureMarkedAndSurfaced(t *testing.T) {
	applier := &fakeApplier{err: errors.New("neo4j down")}
	marker := &fakeMarker{}
	c := newCoordinator(applier, marker)

	out, err := c.Propagate(context.Background(), CreateClaim, Target{Collection: "claims", RecordID: "c-rec"}, nil)
	if err == nil {
		t.Fatal("claim path must surface derived failure")
	}
	if !fault.IsKind(err, fault.Unavailable) {
		t.Errorf("kind = %v, want unavailable", fault.KindOf(err))
	}
	if fault.CodeOf(err) != "graph_sync_failed" {
		t.Errorf("code = %q", fault.CodeOf(err))
	}
	if out.Status != Deferred {
		t.Errorf("outcome = %+v", out)
	}
	if marker.calls != 1 || marker.id != "c-rec" {
		t.Errorf("marker = %+v", marker)
	}
}

func TestMarkerFailureDoesNotChangeContract(t *testing.T) {
	applier := &fakeApplier{err: errors.New("neo4j down")}
	marker := &fakeMarker{err: errors.New("postgres down too")}
	c := newCoordinator(applier, marker)

	if _, err := c.Propagate(context.Background(), CreatePolicy, Target{Collection: "policies", RecordID: "p"}, nil); err != nil {
		t.Fatalf("marker failure must not surface on a swallowing path: %v", err)
	}
}
