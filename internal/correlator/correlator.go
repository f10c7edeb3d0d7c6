package correlator

import (
	"go.uber.org/zap"

	"github.com/casskit/compactlog/internal/model"
	"github.com/casskit/compactlog/internal/parser"
)

// Correlator folds classified start/end events into one CompactionTask
// record per task identifier. State is owned by the instance: parallel
// drivers run one correlator per file and reconcile with MergeFrom.
//
// Events of the same kind overwrite each other wholesale (last write
// wins); the other field group is never touched, so start-only and
// end-only records are valid at any point. Records are never deleted.
type Correlator struct {
	logger *zap.Logger
	tasks  map[string]*model.CompactionTask
	// order remembers first-seen task identifiers so output and merges
	// are deterministic.
	order []string
}

// New creates an empty correlator. A nil logger disables diagnostics.
func New(logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		logger: logger,
		tasks:  make(map[string]*model.CompactionTask),
	}
}

// Apply merges one classified event into the record for its task
// identifier, creating the record on first sight. Start and end events
// for the same identifier may arrive in either order.
func (c *Correlator) Apply(ev parser.Event) {
	task := c.lookup(ev.TaskID())

	switch e := ev.(type) {
	case *parser.StartEvent:
		task.Start = &model.StartInfo{
			Timestamp:     e.Timestamp,
			Keyspace:      e.Keyspace,
			Table:         e.Table,
			InputSSTables: e.InputSSTables,
		}
	case *parser.EndEvent:
		task.End = &model.EndInfo{
			Timestamp:               e.Timestamp,
			OutputSSTables:          e.OutputSSTables,
			OriginalSize:            e.OriginalSize,
			OriginalSizeUnit:        e.OriginalSizeUnit,
			CompactedSize:           e.CompactedSize,
			CompactedSizeUnit:       e.CompactedSizeUnit,
			Duration:                e.Duration,
			DurationUnit:            e.DurationUnit,
			ReadThroughput:          e.ReadThroughput,
			ReadThroughputUnit:      e.ReadThroughputUnit,
			WriteThroughput:         e.WriteThroughput,
			WriteThroughputUnit:     e.WriteThroughputUnit,
			RowThroughput:           e.RowThroughput,
			RowThroughputUnit:       e.RowThroughputUnit,
			PartitionThroughput:     e.PartitionThroughput,
			PartitionThroughputUnit: e.PartitionThroughputUnit,
			TotalPartitionsMerged:   e.TotalPartitionsMerged,
			TotalKeysWritten:        e.TotalKeysWritten,
			PartitionMergeCounts:    e.PartitionMergeCounts,
		}
	default:
		c.logger.Warn("unknown event kind", zap.String("task_id", ev.TaskID()))
	}
}

// MergeFrom folds another correlator's records into this one, in the
// other's first-seen order, group-wise last-write-wins. Merging per-file
// correlators in input-file order reproduces the sequential result.
func (c *Correlator) MergeFrom(other *Correlator) {
	for _, id := range other.order {
		src := other.tasks[id]
		dst := c.lookup(id)
		if src.Start != nil {
			dst.Start = src.Start
		}
		if src.End != nil {
			dst.End = src.End
		}
		if len(src.Children) > 0 {
			dst.Children = append(dst.Children, src.Children...)
		}
	}
}

// Get returns the record for a task identifier, if present.
func (c *Correlator) Get(taskID string) (*model.CompactionTask, bool) {
	t, ok := c.tasks[taskID]
	return t, ok
}

// Len returns the number of distinct task identifiers observed.
func (c *Correlator) Len() int {
	return len(c.tasks)
}

// Tasks returns the full task map. The map is owned by the correlator;
// callers read it after input is exhausted.
func (c *Correlator) Tasks() map[string]*model.CompactionTask {
	return c.tasks
}

// TaskIDs returns task identifiers in first-seen order.
func (c *Correlator) TaskIDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// lookup finds or creates the record for a task identifier.
func (c *Correlator) lookup(taskID string) *model.CompactionTask {
	if t, ok := c.tasks[taskID]; ok {
		return t
	}
	t := model.NewCompactionTask(taskID)
	c.tasks[taskID] = t
	c.order = append(c.order, taskID)
	c.logger.Debug("tracking new compaction task", zap.String("task_id", taskID))
	return t
}
