package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MergeMode selects how an existing node's fields are treated on merge.
type MergeMode int

const (
	// CreateOnly sets fields only when the merge creates the node.
	CreateOnly MergeMode = iota
	// FillAbsent sets fields on create; on match it only fills fields that
	// are currently null, never overwriting an earlier value.
	FillAbsent
	// Overwrite sets every provided field regardless of node state.
	Overwrite
)

// Node labels and relationship types of the projection.
const (
	LabelCustomer = "Customer"
	LabelAgent    = "Agent"
	LabelPolicy   = "Policy"
	LabelClaim    = "Claim"

	EdgeHas     = "HAS"
	EdgeManages = "MANAGES"
)

// Labels and relationship types cannot be parameterized in Cypher; they are
// interpolated, so only plain identifiers are accepted.
var identRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identRE.MatchString(s) {
		return fmt.Errorf("graph: invalid %s %q", kind, s)
	}
	return nil
}

// nodeQuery builds the MERGE statement for one node upsert. Fields travel in
// a single $props parameter; FillAbsent expands to per-field coalesce so an
// earlier pass keeps precedence.
func nodeQuery(label string, fields map[string]any, mode MergeMode) (string, error) {
	if err := checkIdent("label", label); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE (n:%s {id: $key})", label)

	if len(fields) == 0 {
		return b.String(), nil
	}

	switch mode {
	case CreateOnly:
		b.WriteString("\nON CREATE SET n += $props")
	case Overwrite:
		b.WriteString("\nSET n += $props")
	case FillAbsent:
		names := make([]string, 0, len(fields))
		for name := range fields {
			if err := checkIdent("field", name); err != nil {
				return "", err
			}
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nON CREATE SET n += $props")
		b.WriteString("\nON MATCH SET ")
		for i, name := range names {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "n.%s = coalesce(n.%s, $props.%s)", name, name, name)
		}
	default:
		return "", fmt.Errorf("graph: unknown merge mode %d", mode)
	}

	return b.String(), nil
}

// edgeQuery builds the MERGE statement for one directed relationship,
// merging both endpoints first so an edge can never dangle.
func edgeQuery(fromLabel, edgeType, toLabel string) (string, error) {
	for kind, s := range map[string]string{"label": fromLabel, "edge type": edgeType, "to label": toLabel} {
		if err := checkIdent(kind, s); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf(
		"MERGE (a:%s {id: $from})\nMERGE (b:%s {id: $to})\nMERGE (a)-[:%s]->(b)",
		fromLabel, toLabel, edgeType,
	), nil
}
