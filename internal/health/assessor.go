// Package health derives a HealthReport from a rollup's current status and
// threshold configuration. Assess is a pure function of its inputs: same
// (status, now, thresholds) always yields the same report, which is what
// makes it trivial to test with a fixed clock while events themselves
// keep their own embedded L1 timestamps.
package health

import (
	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

// Assess runs the ordered classification: the first matching rule decides
// status, then cadence checks accumulate additional issues independently.
// Issue ordering is deterministic: halted, delayed, no batch, no proof, no
// events.
func Assess(rollup models.RollupId, status models.RollupStatus, now int64, thresholds models.ThresholdSet) models.HealthReport {
	report := models.HealthReport{
		Rollup: rollup,
		Issues: []string{},
	}

	if !status.HasEvent {
		report.Status = models.Disconnected
		report.Issues = append(report.Issues, "no events")
		return report
	}

	age := now - status.LastUpdated
	report.LastEventAgeSecs = age
	report.LastBatchAgeSecs = now - status.LastBatchUpdated
	report.LastProofAgeSecs = now - status.LastProofUpdated

	switch {
	case age > thresholds.HaltedSecs:
		report.Status = models.Halted
		report.Issues = append(report.Issues, "exceeds halted threshold")
	case age > thresholds.DelayedSecs:
		report.Status = models.Delayed
		report.Issues = append(report.Issues, "exceeds delayed threshold")
	default:
		report.Status = models.Healthy
	}

	if now-status.LastBatchUpdated > thresholds.BatchCadenceSecs {
		report.Issues = append(report.Issues, "No batch")
	}
	if now-status.LastProofUpdated > thresholds.ProofCadenceSecs {
		report.Issues = append(report.Issues, "No proof")
	}

	return report
}
