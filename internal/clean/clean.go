package clean

import (
	"context"

	"github.com/cleansweep/engine/internal/hooks"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// Cleaner applies an ordered rule list to a batch.
type Cleaner struct {
	// DetailedDiff enables the changed-row diagnostic for rules that
	// leave the row count unchanged. It snapshots the batch before every
	// rule, which costs a full copy per rule on large batches.
	DetailedDiff bool

	applied int
}

// RulesApplied reports how many rules the last Clean call ran to
// completion. An early stop on an emptied batch leaves the count below
// the length of the rule list.
func (c *Cleaner) RulesApplied() int {
	return c.applied
}

// Clean runs the rule specifications against the batch in order, then
// fires the documents_clean event on the result and returns the final
// batch.
//
// Each rule's type resolves just before that rule applies, so the rules
// ahead of an unknown type have already run by the time it is reported.
// A rule that empties the batch stops the run early: the remaining rules
// are skipped and the empty batch still flows to the plugins. Any rule
// error aborts the clean with no partial result. Cancellation is checked
// between rules; no rule blocks internally.
func (c *Cleaner) Clean(ctx context.Context, b *curation.Batch, specs []curation.RuleSpec, plugins []hooks.Plugin) (*curation.Batch, error) {
	c.applied = 0
	dispatcher := hooks.NewDispatcher()
	for _, p := range plugins {
		dispatcher.Register(p)
	}

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := logger.WithRule(spec.Type, spec.String())
		log.Info("applying rule")

		rule, err := RuleFor(spec.Type)
		if err != nil {
			return nil, err
		}

		var before *curation.Batch
		if c.DetailedDiff {
			before = b.Clone()
		}
		countBefore := b.Len()

		next, err := rule.Apply(b, spec.Params)
		if err != nil {
			return nil, err
		}
		b = next
		c.applied++

		if b.IsEmpty() {
			log.Warn("rule removed every document, skipping remaining rules")
			break
		}

		if removed := countBefore - b.Len(); removed != 0 {
			log.Info("rule removed documents", "removed", removed)
		} else if c.DetailedDiff {
			log.Info("rule affected documents", "affected", before.DiffCount(b))
		}
	}

	return dispatcher.DocumentsCleaned(ctx, b)
}
