package model

import "strconv"

// Level identifies an SSTable's tier in a leveled compaction scheme.
type Level int

// LevelNone marks an SSTable whose level was not present in the log line.
const LevelNone Level = -1

// Default units applied when the log line does not carry one.
const (
	DefaultDurationUnit = "ms"
	DefaultRateUnit     = "second"
)

// MarshalJSON renders LevelNone as null so consumers can tell "level
// unknown" apart from level 0.
func (l Level) MarshalJSON() ([]byte, error) {
	if l == LevelNone {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// StartInfo holds the fields derived from a compaction-start log line.
// A start event always replaces the whole group on its task.
type StartInfo struct {
	// Timestamp is the log-native timestamp string, preserved verbatim.
	Timestamp string
	// Keyspace and Table name the logical namespace the input SSTables
	// belong to, taken from the first listed input path.
	Keyspace string
	Table    string
	// InputSSTables maps canonical SSTable name to its level
	// (LevelNone when the path carried no level suffix).
	InputSSTables map[string]Level
}

// EndInfo holds the fields derived from a compaction-end log line.
// An end event always replaces the whole group on its task.
type EndInfo struct {
	Timestamp string
	// OutputSSTables maps the output SSTable name (usually exactly one)
	// to the level the compaction wrote it to.
	OutputSSTables map[string]Level

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

	// PartitionThroughput is nil when the log line omits the
	// "Partition Throughput" group; older server versions do not emit it.
	PartitionThroughput     *int64
	PartitionThroughputUnit string

	TotalPartitionsMerged int64
	TotalKeysWritten      int64

	// PartitionMergeCounts is the trailing "{n:m, ...}" summary,
	// captured raw and not further parsed.
	PartitionMergeCounts string
}

// CompactionTask is the canonical record for one compaction, correlated
// from its start and end log lines. Either field group may be nil: a
// start-only or end-only record is a valid terminal state.
type CompactionTask struct {
	// TaskID is the sole correlation key. It is assigned at creation and
	// never changes.
	TaskID string

	Start *StartInfo
	End   *EndInfo

	// Children lists identifiers of child compaction tasks. No current
	// log line populates it; reserved for future use.
	Children []string
}

// NewCompactionTask creates an empty record for the given identifier.
func NewCompactionTask(taskID string) *CompactionTask {
	return &CompactionTask{TaskID: taskID}
}

// Complete reports whether both the start and end line have been observed.
func (t *CompactionTask) Complete() bool {
	return t.Start != nil && t.End != nil
}
