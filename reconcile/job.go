// Package reconcile rebuilds the graph projection from the primary store.
// Every write it makes is an idempotent merge: a second run with no
// intervening primary writes leaves the projection byte-identical, and
// running alongside live traffic is safe because earlier-populated fields
// are never overwritten (status excepted, which is authoritative).
package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"polisync/canon"
	"polisync/docstore"
	"polisync/graph"
)

const defaultBatchSize = 500

// DocSource is the slice of the primary store the job reads and repairs.
type DocSource interface {
	StreamAll(ctx context.Context, collection string, batchSize int, fn func(id string, rec docstore.Record) error) error
	ClearSyncFailure(ctx context.Context, collection, id string) error
}

// Batch is one derived-store transaction covering a batch of records.
type Batch interface {
	MergeNode(ctx context.Context, label, key string, fields map[string]any, mode graph.MergeMode) error
	MergeEdge(ctx context.Context, fromLabel, fromKey, edgeType, toLabel, toKey string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Graph opens batch transactions against the derived store.
type Graph interface {
	Begin(ctx context.Context) (Batch, error)
}

// GraphAdapter lifts *graph.Store into the Graph interface.
type GraphAdapter struct {
	Store *graph.Store
}

func (a GraphAdapter) Begin(ctx context.Context) (Batch, error) {
	return a.Store.Begin(ctx)
}

// Summary reports what a run touched.
type Summary struct {
	Processed int
	Skipped   int
}

type Job struct {
	docs      DocSource
	graph     Graph
	log       zerolog.Logger
	batchSize int
}

func NewJob(docs DocSource, g Graph, log zerolog.Logger) *Job {
	return &Job{docs: docs, graph: g, log: log, batchSize: defaultBatchSize}
}

func (j *Job) WithBatchSize(n int) *Job {
	if n > 0 {
		j.batchSize = n
	}
	return j
}

// Run streams policies and then claims, one derived transaction per batch.
// A batch failure aborts the run; committed batches stay, and a rerun of the
// whole job completes the repair. The policy pass and the policy-key map
// build each scan the policies collection once, so they run concurrently.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	var (
		policies int
		keyMap   map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := j.policyPass(gctx)
		policies = n
		return err
	})
	g.Go(func() error {
		m, err := j.buildPolicyKeyMap(gctx)
		keyMap = m
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	claims, skipped, err := j.claimPass(ctx, keyMap)
	if err != nil {
		return Summary{}, err
	}

	j.log.Info().
		Int("policies", policies).
		Int("claims", claims).
		Int("claims_skipped", skipped).
		Msg("reconciliation complete")

	return Summary{Processed: policies + claims, Skipped: skipped}, nil
}

type row struct {
	id  string
	rec docstore.Record
}

func (j *Job) policyPass(ctx context.Context) (int, error) {
	processed := 0
	buf := make([]row, 0, j.batchSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := j.flushPolicies(ctx, buf); err != nil {
			return err
		}
		processed += len(buf)
		buf = buf[:0]
		return nil
	}

	err := j.docs.StreamAll(ctx, docstore.Policies, j.batchSize, func(id string, rec docstore.Record) error {
		buf = append(buf, row{id: id, rec: rec})
		if len(buf) >= j.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return processed, fmt.Errorf("reconcile: policy pass: %w", err)
	}
	if err := flush(); err != nil {
		return processed, fmt.Errorf("reconcile: policy pass: %w", err)
	}
	return processed, nil
}

func (j *Job) flushPolicies(ctx context.Context, rows []row) error {
	batch, err := j.graph.Begin(ctx)
	if err != nil {
		return err
	}

	flagged := make([]string, 0)
	for _, r := range rows {
		if err := j.mergePolicy(ctx, batch, r); err != nil {
			_ = batch.Rollback(ctx)
			return err
		}
		if canon.Truthy(r.rec["sync_error"], false) {
			flagged = append(flagged, r.id)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return err
	}

	for _, id := range flagged {
		if err := j.docs.ClearSyncFailure(ctx, docstore.Policies, id); err != nil {
			return err
		}
	}
	return nil
}

// policyKey is the canonical derived key: the policy number when present,
// else the primary-store record id.
func policyKey(id string, rec docstore.Record) string {
	if n := canon.Key(rec["policy_number"]); n != "" {
		return n
	}
	return id
}

func (j *Job) mergePolicy(ctx context.Context, batch Batch, r row) error {
	pid := policyKey(r.id, r.rec)
	cid := canon.Key(r.rec["customer_id"])
	aid := canon.Key(r.rec["agent_id"])

	fields := map[string]any{}
	if n := canon.Key(r.rec["policy_number"]); n != "" {
		fields["policy_number"] = n
	}
	if t := canon.Key(r.rec["type"]); t != "" {
		fields["type"] = t
	}
	if iso := canon.ISODate(r.rec["start_date"]); iso != "" {
		fields["start_date"] = iso
	}
	if iso := canon.ISODate(r.rec["end_date"]); iso != "" {
		fields["end_date"] = iso
	}
	if v, ok := r.rec["total_coverage"].(float64); ok {
		fields["total_coverage"] = v
	}

	if err := batch.MergeNode(ctx, graph.LabelPolicy, pid, fields, graph.FillAbsent); err != nil {
		return err
	}
	if status := canon.Upper(r.rec["status"]); status != "" {
		if err := batch.MergeNode(ctx, graph.LabelPolicy, pid, map[string]any{"status": status}, graph.Overwrite); err != nil {
			return err
		}
	}

	if cid != "" {
		if err := batch.MergeEdge(ctx, graph.LabelCustomer, cid, graph.EdgeHas, graph.LabelPolicy, pid); err != nil {
			return err
		}
	}
	if aid != "" {
		if err := batch.MergeEdge(ctx, graph.LabelAgent, aid, graph.EdgeManages, graph.LabelPolicy, pid); err != nil {
			return err
		}
	}
	return nil
}

// buildPolicyKeyMap maps primary record ids to canonical policy keys, so
// claims that reference a policy by internal id still land on the right node.
func (j *Job) buildPolicyKeyMap(ctx context.Context) (map[string]string, error) {
	m := make(map[string]string)
	err := j.docs.StreamAll(ctx, docstore.Policies, j.batchSize, func(id string, rec docstore.Record) error {
		m[id] = policyKey(id, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: build policy key map: %w", err)
	}
	return m, nil
}

func (j *Job) claimPass(ctx context.Context, keyMap map[string]string) (int, int, error) {
	processed := 0
	skipped := 0
	buf := make([]row, 0, j.batchSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		done, skip, err := j.flushClaims(ctx, buf, keyMap)
		if err != nil {
			return err
		}
		processed += done
		skipped += skip
		buf = buf[:0]
		return nil
	}

	err := j.docs.StreamAll(ctx, docstore.Claims, j.batchSize, func(id string, rec docstore.Record) error {
		buf = append(buf, row{id: id, rec: rec})
		if len(buf) >= j.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return processed, skipped, fmt.Errorf("reconcile: claim pass: %w", err)
	}
	if err := flush(); err != nil {
		return processed, skipped, fmt.Errorf("reconcile: claim pass: %w", err)
	}

	if skipped > 0 {
		j.log.Warn().Int("skipped", skipped).Msg("claims skipped for missing policy reference")
	}
	return processed, skipped, nil
}

func (j *Job) flushClaims(ctx context.Context, rows []row, keyMap map[string]string) (int, int, error) {
	batch, err := j.graph.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}

	processed := 0
	skipped := 0
	flagged := make([]string, 0)
	for _, r := range rows {
		pid := resolvePolicyRef(r.rec, keyMap)
		if pid == "" || pid == "null" || pid == "undefined" {
			skipped++
			j.log.Warn().Str("claim_id", r.id).Msg("orphan claim skipped")
			continue
		}

		if err := j.mergeClaim(ctx, batch, r, pid); err != nil {
			_ = batch.Rollback(ctx)
			return 0, 0, err
		}
		processed++
		if canon.Truthy(r.rec["sync_error"], false) {
			flagged = append(flagged, r.id)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return 0, 0, err
	}

	for _, id := range flagged {
		if err := j.docs.ClearSyncFailure(ctx, docstore.Claims, id); err != nil {
			return processed, skipped, err
		}
	}
	return processed, skipped, nil
}

// resolvePolicyRef prefers the stored policy number, then the key map, then
// the raw stored reference.
func resolvePolicyRef(rec docstore.Record, keyMap map[string]string) string {
	if n := canon.Key(rec["policy_number"]); n != "" {
		return n
	}
	ref := canon.Key(rec["policy_id"])
	if ref == "" {
		return ""
	}
	if mapped, ok := keyMap[ref]; ok {
		return mapped
	}
	return ref
}

func (j *Job) mergeClaim(ctx context.Context, batch Batch, r row, pid string) error {
	fields := map[string]any{}
	if v, ok := r.rec["claim_seq"].(float64); ok {
		fields["claim_seq"] = int64(v)
	}
	if t := canon.Key(r.rec["type"]); t != "" {
		fields["type"] = t
	}
	if iso := canon.ISODate(r.rec["date"]); iso != "" {
		fields["date"] = iso
	}
	if v, ok := r.rec["amount_estimate"].(float64); ok {
		fields["amount"] = v
	}

	if err := batch.MergeNode(ctx, graph.LabelClaim, r.id, fields, graph.FillAbsent); err != nil {
		return err
	}
	// Claim status mirrors the primary store verbatim, even onto nodes that
	// already carry a different value. A null clears the property.
	var status any
	if s := canon.Upper(r.rec["status"]); s != "" {
		status = s
	}
	if err := batch.MergeNode(ctx, graph.LabelClaim, r.id, map[string]any{"status": status}, graph.Overwrite); err != nil {
		return err
	}
	return batch.MergeEdge(ctx, graph.LabelPolicy, pid, graph.EdgeHas, graph.LabelClaim, r.id)
}
