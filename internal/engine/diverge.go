package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/quire/internal/frame"
)

// changes lists what differs between the snapshot a pass read and the one
// it produced: element layout first, then every counter or state whose
// final value moved.
func changes(prior, next *frame.Snapshot) []string {
	var out []string
	if d := prior.Index.Diff(next.Index); d != "" {
		out = append(out, d)
	}

	before, after := prior.Store.Finals(), next.Store.Finals()
	keys := make([]string, 0, len(after))
	for k, v := range after {
		if before[k] != v {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := after[k]
		if !ok {
			v = "removed"
		}
		out = append(out, fmt.Sprintf("%s = %s", k, v))
	}
	return out
}

// divergence builds the warning for a compilation that hit MaxIterations.
// The detail lists what each pass changed.
func divergence(hasErrors bool, passes []PassReport) *hcl.Diagnostic {
	var b strings.Builder
	b.WriteString("Hint: check if any states or queries are updating themselves.")
	if hasErrors {
		b.WriteString(" The errors reported with this warning may be caused by the unstable values.")
	}
	for _, p := range passes {
		fmt.Fprintf(&b, "\nPass %d:", p.Number)
		switch {
		case p.Deferred > 0:
			fmt.Fprintf(&b, " %d reads not yet available", p.Deferred)
		case len(p.Changes) == 0:
			b.WriteString(" no changes")
		default:
			b.WriteString(" " + strings.Join(p.Changes, "; "))
		}
	}
	return &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  fmt.Sprintf("Layout did not converge within %d attempts", MaxIterations),
		Detail:   b.String(),
	}
}
