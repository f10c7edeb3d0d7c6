package parser

import "github.com/casskit/compactlog/internal/model"

// Event is a classified log line. Exactly two kinds exist, one per line
// grammar; both carry the task identifier used for correlation.
type Event interface {
	// TaskID returns the compaction task identifier the event belongs to.
	TaskID() string
}

// StartEvent is a classified "Compacting" line.
type StartEvent struct {
	ID        string
	Timestamp string
	Keyspace  string
	Table     string
	// InputSSTables maps canonical input SSTable name to level.
	InputSSTables map[string]model.Level
}

// TaskID returns the compaction task identifier.
func (e *StartEvent) TaskID() string { return e.ID }

// EndEvent is a classified "Compacted" line.
type EndEvent struct {
	ID        string
	Timestamp string
	// OutputSSTables maps the output SSTable name to the level the line
	// reports the compaction wrote to.
	OutputSSTables map[string]model.Level

	OriginalSize      float64
	OriginalSizeUnit  string
	CompactedSize     float64
	CompactedSizeUnit string

	Duration     int64
	DurationUnit string

	ReadThroughput      float64
	ReadThroughputUnit  string
	WriteThroughput     float64
	WriteThroughputUnit string

	RowThroughput     int64
	RowThroughputUnit string

	PartitionThroughput     *int64
	PartitionThroughputUnit string

	TotalPartitionsMerged int64
	TotalKeysWritten      int64
	PartitionMergeCounts  string
}

// TaskID returns the compaction task identifier.
func (e *EndEvent) TaskID() string { return e.ID }
