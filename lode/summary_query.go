package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSummaryFound is returned when no summary record matches.
var ErrNoSummaryFound = errors.New("no summary records found")

// QueryLatestSummary returns the most recent run summary, filtered by runID
// and source when non-empty.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, runID, source string) (SummaryRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return SummaryRecord{}, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "record_kind", RecordKindSummary) ||
			!snapshotMatches(snap, "run_id", runID) ||
			!snapshotMatches(snap, "source", source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return SummaryRecord{}, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse filter; record fields decide.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindSummary {
				continue
			}
			rec := SummaryFromMap(m)
			if runID != "" && rec.RunID != runID {
				continue
			}
			if source != "" && rec.Source != source {
				continue
			}
			return rec, nil
		}
	}

	return SummaryRecord{}, ErrNoSummaryFound
}
