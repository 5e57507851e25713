package syncer

import "time"

// ItemStatus is the terminal state of one document in a sync batch.
type ItemStatus string

const (
	StatusOK        ItemStatus = "ok"
	StatusFailed    ItemStatus = "failed"
	StatusSkipped   ItemStatus = "skipped"
	StatusCancelled ItemStatus = "cancelled"
)

// Action is what the synchronizer did with a document.
type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionMerged   Action = "merged"
	ActionSkipped  Action = "skipped"
	ActionNone     Action = "none"
)

// ItemResult reports the outcome for a single document.
type ItemResult struct {
	DocID  string
	Path   string
	Status ItemStatus
	Action Action
	Match  MatchType
	Chunks int
	Err    error
}

// SyncResult aggregates a batch run. Counts are derived from Items.
type SyncResult struct {
	Items       []ItemResult
	Inserted    int
	Updated     int
	Merged      int
	Skipped     int
	Failed      int
	Cancelled   int
	TotalChunks int
	Duration    time.Duration
}

func (r *SyncResult) record(item ItemResult) {
	r.Items = append(r.Items, item)

	switch item.Status {
	case StatusFailed:
		r.Failed++
		return
	case StatusCancelled:
		r.Cancelled++
		return
	case StatusSkipped:
		r.Skipped++
		return
	}

	switch item.Action {
	case ActionInserted:
		r.Inserted++
	case ActionUpdated:
		r.Updated++
	case ActionMerged:
		r.Merged++
	}
	r.TotalChunks += item.Chunks
}
