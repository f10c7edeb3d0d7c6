package report

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/casskit/compactlog/internal/correlator"
	"github.com/casskit/compactlog/internal/model"
)

// Record is the flat JSON shape of one correlated compaction task.
// Fields belonging to an unobserved start or end group are omitted.
type Record struct {
	TaskID string `json:"task_id"`

	StartTime     string                 `json:"start_time,omitempty"`
	Keyspace      string                 `json:"keyspace,omitempty"`
	Table         string                 `json:"table,omitempty"`
	InputSSTables map[string]model.Level `json:"input_sstables,omitempty"`

	EndTime        string                 `json:"end_time,omitempty"`
	OutputSSTables map[string]model.Level `json:"output_sstables,omitempty"`

	OriginalSize      *float64 `json:"original_size,omitempty"`
	OriginalSizeUnit  string   `json:"original_size_unit,omitempty"`
	CompactedSize     *float64 `json:"compacted_size,omitempty"`
	CompactedSizeUnit string   `json:"compacted_size_unit,omitempty"`

	CompactionDeltaTime     *int64 `json:"compaction_delta_time,omitempty"`
	CompactionDeltaTimeUnit string `json:"compaction_delta_time_unit,omitempty"`

	ReadThroughput      *float64 `json:"read_throughput,omitempty"`
	ReadThroughputUnit  string   `json:"read_throughput_unit,omitempty"`
	WriteThroughput     *float64 `json:"write_throughput,omitempty"`
	WriteThroughputUnit string   `json:"write_throughput_unit,omitempty"`

	RowThroughput           *int64 `json:"row_throughput,omitempty"`
	RowThroughputUnit       string `json:"row_throughput_unit,omitempty"`
	PartitionThroughput     *int64 `json:"partition_throughput,omitempty"`
	PartitionThroughputUnit string `json:"partition_throughput_unit,omitempty"`

	TotalPartitionsMerged *int64 `json:"total_partitions_merged,omitempty"`
	TotalKeysWritten      *int64 `json:"total_keys_written,omitempty"`
	PartitionMergeCounts  string `json:"partition_merge_counts,omitempty"`

	Children []string `json:"children"`
}

// FromTask flattens one correlated task into its JSON record.
func FromTask(t *model.CompactionTask) Record {
	rec := Record{
		TaskID:   t.TaskID,
		Children: t.Children,
	}
	if rec.Children == nil {
		rec.Children = []string{}
	}

	if s := t.Start; s != nil {
		rec.StartTime = s.Timestamp
		rec.Keyspace = s.Keyspace
		rec.Table = s.Table
		rec.InputSSTables = s.InputSSTables
	}

	if e := t.End; e != nil {
		rec.EndTime = e.Timestamp
		rec.OutputSSTables = e.OutputSSTables
		rec.OriginalSize = &e.OriginalSize
		rec.OriginalSizeUnit = e.OriginalSizeUnit
		rec.CompactedSize = &e.CompactedSize
		rec.CompactedSizeUnit = e.CompactedSizeUnit
		rec.CompactionDeltaTime = &e.Duration
		rec.CompactionDeltaTimeUnit = e.DurationUnit
		rec.ReadThroughput = &e.ReadThroughput
		rec.ReadThroughputUnit = e.ReadThroughputUnit
		rec.WriteThroughput = &e.WriteThroughput
		rec.WriteThroughputUnit = e.WriteThroughputUnit
		rec.RowThroughput = &e.RowThroughput
		rec.RowThroughputUnit = e.RowThroughputUnit
		rec.PartitionThroughput = e.PartitionThroughput
		rec.PartitionThroughputUnit = e.PartitionThroughputUnit
		rec.TotalPartitionsMerged = &e.TotalPartitionsMerged
		rec.TotalKeysWritten = &e.TotalKeysWritten
		rec.PartitionMergeCounts = e.PartitionMergeCounts
	}

	return rec
}

// WriteJSON renders the correlated task map as a JSON array, one record
// per task in first-seen order.
func WriteJSON(w io.Writer, corr *correlator.Correlator, pretty bool) error {
	records := make([]Record, 0, corr.Len())
	for _, id := range corr.TaskIDs() {
		task, _ := corr.Get(id)
		records = append(records, FromTask(task))
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(records)
}
