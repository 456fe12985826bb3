package reconcile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polisync/docstore"
	"polisync/graph"
)

// memDocs serves collections from memory in insertion order.
type memDocs struct {
	rows    map[string][]row
	cleared []string
}

func (d *memDocs) StreamAll(ctx context.Context, collection string, batchSize int, fn func(id string, rec docstore.Record) error) error {
	for _, r := range d.rows[collection] {
		if err := fn(r.id, r.rec); err != nil {
			return err
		}
	}
	return nil
}

func (d *memDocs) ClearSyncFailure(ctx context.Context, collection, id string) error {
	d.cleared = append(d.cleared, collection+"/"+id)
	return nil
}

// memGraph applies merge semantics to an in-memory node/edge set so merge
// modes and idempotency are observable.
type memGraph struct {
	nodes     map[string]map[string]any
	edges     map[string]struct{}
	commits   int
	rollbacks int
	failNode  string // "Label/key" whose merge fails
}

func newMemGraph() *memGraph {
	return &memGraph{nodes: map[string]map[string]any{}, edges: map[string]struct{}{}}
}

func (g *memGraph) Begin(ctx context.Context) (Batch, error) {
	return &memBatch{g: g}, nil
}

type stagedOp func(g *memGraph)

type memBatch struct {
	g      *memGraph
	staged []stagedOp
}

func (b *memBatch) MergeNode(ctx context.Context, label, key string, fields map[string]any, mode graph.MergeMode) error {
	nodeKey := label + "/" + key
	if b.g.failNode == nodeKey {
		return errors.New("merge refused")
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	b.staged = append(b.staged, func(g *memGraph) {
		node, existed := g.nodes[nodeKey]
		if !existed {
			node = map[string]any{}
			g.nodes[nodeKey] = node
		}
		for k, v := range copied {
			switch mode {
			case graph.CreateOnly:
				if !existed {
					node[k] = v
				}
			case graph.FillAbsent:
				if existed {
					if _, has := node[k]; has {
						continue
					}
				}
				node[k] = v
			case graph.Overwrite:
				if v == nil {
					delete(node, k)
				} else {
					node[k] = v
				}
			}
		}
	})
	return nil
}

func (b *memBatch) MergeEdge(ctx context.Context, fromLabel, fromKey, edgeType, toLabel, toKey string) error {
	key := fmt.Sprintf("%s/%s-%s->%s/%s", fromLabel, fromKey, edgeType, toLabel, toKey)
	b.staged = append(b.staged, func(g *memGraph) {
		g.edges[key] = struct{}{}
	})
	return nil
}

func (b *memBatch) Commit(ctx context.Context) error {
	for _, op := range b.staged {
		op(b.g)
	}
	b.g.commits++
	return nil
}

func (b *memBatch) Rollback(ctx context.Context) error {
	b.g.rollbacks++
	return nil
}

func fixtureDocs() *memDocs {
	return &memDocs{rows: map[string][]row{
		docstore.Policies: {
			{id: "rec-p1", rec: docstore.Record{
				"policy_number": "P1", "customer_id": float64(1), "agent_id": float64(5),
				"type": "Auto", "status": "Activa", "start_date": "2025-01-01", "end_date": "31/12/2025",
				"total_coverage": float64(100000),
			}},
			// No policy number: the record id becomes the canonical key.
			{id: "rec-p2", rec: docstore.Record{
				"customer_id": "2", "agent_id": "5", "type": "Moto", "status": "EXPIRED",
			}},
		},
		docstore.Claims: {
			{id: "rec-c1", rec: docstore.Record{
				"policy_number": "P1", "type": "Accidente", "status": "Abierto",
				"date": "20/3/2025", "amount_estimate": float64(1000), "claim_seq": float64(90001),
			}},
			// References its policy by internal id only.
			{id: "rec-c2", rec: docstore.Record{
				"policy_id": "rec-p2", "type": "Robo", "status": "Open",
			}},
			// Orphan: no resolvable policy reference.
			{id: "rec-c3", rec: docstore.Record{"type": "Incendio"}},
		},
	}}
}

func TestRunProjectsPoliciesAndClaims(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()
	job := NewJob(docs, g, zerolog.Nop())

	sum, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 4, Skipped: 1}, sum)

	p1 := g.nodes["Policy/P1"]
	require.NotNil(t, p1)
	assert.Equal(t, "Auto", p1["type"])
	assert.Equal(t, "ACTIVA", p1["status"])
	assert.Equal(t, "2025-01-01", p1["start_date"])
	assert.Equal(t, "2025-12-31", p1["end_date"])
	assert.Equal(t, float64(100000), p1["total_coverage"])

	// Fallback key for the numberless policy.
	require.NotNil(t, g.nodes["Policy/rec-p2"])
	require.NotNil(t, g.nodes["Customer/1"])
	require.NotNil(t, g.nodes["Agent/5"])

	assert.Contains(t, g.edges, "Customer/1-HAS->Policy/P1")
	assert.Contains(t, g.edges, "Agent/5-MANAGES->Policy/P1")
	assert.Contains(t, g.edges, "Customer/2-HAS->Policy/rec-p2")

	c1 := g.nodes["Claim/rec-c1"]
	require.NotNil(t, c1)
	assert.Equal(t, "ABIERTO", c1["status"])
	assert.Equal(t, "2025-03-20", c1["date"])
	assert.Contains(t, g.edges, "Policy/P1-HAS->Claim/rec-c1")

	// Claim resolved through the id map lands on the canonical policy key.
	assert.Contains(t, g.edges, "Policy/rec-p2-HAS->Claim/rec-c2")

	// The orphan produced no node.
	assert.NotContains(t, g.nodes, "Claim/rec-c3")
}

func TestRunIsIdempotent(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()
	job := NewJob(docs, g, zerolog.Nop())

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	nodes := snapshotNodes(g)
	edges := len(g.edges)

	sum, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Processed)

	if !reflect.DeepEqual(nodes, snapshotNodes(g)) {
		t.Errorf("node set drifted across reruns:\nfirst: %#v\nsecond: %#v", nodes, snapshotNodes(g))
	}
	assert.Equal(t, edges, len(g.edges), "edges duplicated across reruns")
}

func TestFillAbsentKeepsEarlierValues(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()
	// A previous pass already populated the node with a different type.
	g.nodes["Policy/P1"] = map[string]any{"type": "Hogar", "status": "SUSPENDIDA"}

	_, err := NewJob(docs, g, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	p1 := g.nodes["Policy/P1"]
	assert.Equal(t, "Hogar", p1["type"], "fill-absent merge must not overwrite")
	assert.Equal(t, "ACTIVA", p1["status"], "status is authoritative and overwritten")
}

func TestClaimStatusAlwaysOverwritten(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()
	g.nodes["Claim/rec-c1"] = map[string]any{"status": "CERRADO", "type": "Accidente"}

	_, err := NewJob(docs, g, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ABIERTO", g.nodes["Claim/rec-c1"]["status"])
}

func TestBatchFailureAbortsRun(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()
	g.failNode = "Policy/P1"

	_, err := NewJob(docs, g, zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, g.rollbacks)
	assert.NotContains(t, g.nodes, "Policy/P1")
}

func TestSyncMarkersClearedAfterCommit(t *testing.T) {
	docs := fixtureDocs()
	docs.rows[docstore.Policies][0].rec["sync_error"] = true
	docs.rows[docstore.Claims][0].rec["sync_error"] = "true"
	g := newMemGraph()

	_, err := NewJob(docs, g, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"policies/rec-p1", "claims/rec-c1"}, docs.cleared)
}

func TestBatchSizeBoundsTransactions(t *testing.T) {
	docs := fixtureDocs()
	g := newMemGraph()

	_, err := NewJob(docs, g, zerolog.Nop()).WithBatchSize(1).Run(context.Background())
	require.NoError(t, err)

	// Two policy batches plus three claim batches (the orphan still flows
	// through its batch).
	assert.Equal(t, 5, g.commits)
}

func snapshotNodes(g *memGraph) map[string]map[string]any {
	out := make(map[string]map[string]any, len(g.nodes))
	for k, v := range g.nodes {
		props := make(map[string]any, len(v))
		for pk, pv := range v {
			props[pk] = pv
		}
		out[k] = props
	}
	return out
}
