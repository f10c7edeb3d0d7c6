package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casskit/compactlog/internal/errors"
	"github.com/casskit/compactlog/internal/model"
)

// The two line grammars below are a wire contract with the storage
// engine's log format: field list and order are fixed, and any upstream
// format change requires a matching change here.

// startRule recognizes the line announcing a compaction begin:
//
//	DEBUG [...] <timestamp>  CompactionTask.java:N - Compacting (<task-id>) [<path>, <path>, ...]
var startRule = regexp.MustCompile(
	`^DEBUG \[.*?\] ` +
		`(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3})  ` +
		`CompactionTask\.java:\d+ - Compacting \(` +
		`(?P<task_id>[a-f0-9-]+)\)\s*\[` +
		`(?P<input_paths>.*?)\]`)

// endRule recognizes the line announcing a compaction completion. Field
// order within the line is fixed; the partition-throughput group is the
// only optional part (older server versions do not emit it).
var endRule = regexp.MustCompile(
	`^DEBUG \[.*?\] ` +
		`(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3})  CompactionTask\.java:\d+ - Compacted \(` +
		`(?P<task_id>[a-f0-9-]+)\)\s*\d+\s*sstables to \[` +
		`(?P<output_paths>.*?)\]\s+to level=` +
		`(?P<output_level>\d+).\s+` +
		`(?P<original_size>[\d.]+)` +
		`(?P<original_size_unit>\w+)\s+to\s+` +
		`(?P<compacted_size>[\d.]+)` +
		`(?P<compacted_size_unit>\w+)\s+\(.*?\)\s+in\s+` +
		`(?P<duration>[\d,]+)` +
		`(?P<duration_unit>\w+)\.\s+Read Throughput = ` +
		`(?P<read_throughput>[\d.]+)` +
		`(?P<read_throughput_unit>\w+/s), Write Throughput = ` +
		`(?P<write_throughput>[\d.]+)` +
		`(?P<write_throughput_unit>\w+/s), Row Throughput = ~` +
		`(?P<row_throughput>[\d,]+)/` +
		`(?P<row_throughput_unit>\w)\.\s+` +
		`(?:Partition Throughput = ~` +
		`(?P<partition_throughput>[\d,]+)/` +
		`(?P<partition_throughput_unit>\w)\.\s+)?` +
		`(?P<total_partitions_merged>[\d,]+)\D+` +
		`(?P<total_keys_written>[\d,]+)\.[\s\w]+` +
		`(?P<partition_merge_counts>\{[\d\s:,]+\})`)

// Classifier matches single log lines against the start and end grammars
// and coerces the named captures into typed events.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier. A nil logger disables diagnostics.
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Classify matches one line against the start grammar, then the end
// grammar. A line matching neither returns (nil, nil): unmatched lines
// are ignored, not errors. A matched line that cannot be coerced (bad
// embedded path, multiple outputs) returns a ParseError and no event.
func (c *Classifier) Classify(line string) (Event, error) {
	if m := startRule.FindStringSubmatch(line); m != nil {
		return c.parseStart(m)
	}
	if m := endRule.FindStringSubmatch(line); m != nil {
		return c.parseEnd(m)
	}
	return nil, nil
}

func (c *Classifier) parseStart(m []string) (Event, error) {
	taskID := capture(startRule, m, "task_id")
	c.checkTaskID(taskID)

	paths := splitPathList(capture(startRule, m, "input_paths"))
	if len(paths) == 0 {
		return nil, errors.NewMalformedPath("", "empty input sstable list")
	}

	// The keyspace and table come from the first listed input; every
	// input of one compaction should agree on them.
	keyspace, table, err := DecomposeLocation(paths[0])
	if err != nil {
		return nil, err
	}
	for _, p := range paths[1:] {
		k, t, err := DecomposeLocation(p)
		if err != nil {
			return nil, err
		}
		if k != keyspace || t != table {
			c.logger.Warn("mixed keyspace/table in compaction inputs",
				zap.String("task_id", taskID),
				zap.String("expected", keyspace+"."+table),
				zap.String("found", k+"."+t))
		}
	}

	inputs := make(map[string]model.Level, len(paths))
	for _, p := range paths {
		name, level, err := DecomposeFilename(p)
		if err != nil {
			return nil, err
		}
		// Duplicate names: last entry wins, map semantics.
		inputs[name] = level
	}

	return &StartEvent{
		ID:            taskID,
		Timestamp:     capture(startRule, m, "timestamp"),
		Keyspace:      keyspace,
		Table:         table,
		InputSSTables: inputs,
	}, nil
}

func (c *Classifier) parseEnd(m []string) (Event, error) {
	taskID := capture(endRule, m, "task_id")
	c.checkTaskID(taskID)

	rawOutputs := capture(endRule, m, "output_paths")
	paths := splitPathList(rawOutputs)
	if len(paths) == 0 {
		return nil, errors.NewMalformedPath("", "empty output sstable list")
	}
	if len(paths) > 1 {
		return nil, errors.NewMultipleOutput(rawOutputs)
	}

	// Decomposing the output location validates the path shape; the end
	// line carries no keyspace/table fields of its own.
	if _, _, err := DecomposeLocation(paths[0]); err != nil {
		return nil, err
	}
	name, _, err := DecomposeFilename(paths[0])
	if err != nil {
		return nil, err
	}

	outputLevel, err := coerceInt(capture(endRule, m, "output_level"))
	if err != nil {
		return nil, err
	}

	ev := &EndEvent{
		ID:        taskID,
		Timestamp: capture(endRule, m, "timestamp"),
		// The output path itself has no level suffix; the level the
		// compaction wrote to is the line's "to level=N" field.
		OutputSSTables: map[string]model.Level{name: model.Level(outputLevel)},

		OriginalSizeUnit:    capture(endRule, m, "original_size_unit"),
		CompactedSizeUnit:   capture(endRule, m, "compacted_size_unit"),
		DurationUnit:        withDefault(capture(endRule, m, "duration_unit"), model.DefaultDurationUnit),
		ReadThroughputUnit:  capture(endRule, m, "read_throughput_unit"),
		WriteThroughputUnit: capture(endRule, m, "write_throughput_unit"),
		RowThroughputUnit:   withDefault(capture(endRule, m, "row_throughput_unit"), model.DefaultRateUnit),

		PartitionMergeCounts: capture(endRule, m, "partition_merge_counts"),
	}

	if ev.OriginalSize, err = coerceFloat(capture(endRule, m, "original_size")); err != nil {
		return nil, err
	}
	if ev.CompactedSize, err = coerceFloat(capture(endRule, m, "compacted_size")); err != nil {
		return nil, err
	}
	if ev.Duration, err = coerceInt(capture(endRule, m, "duration")); err != nil {
		return nil, err
	}
	if ev.ReadThroughput, err = coerceFloat(capture(endRule, m, "read_throughput")); err != nil {
		return nil, err
	}
	if ev.WriteThroughput, err = coerceFloat(capture(endRule, m, "write_throughput")); err != nil {
		return nil, err
	}
	if ev.RowThroughput, err = coerceInt(capture(endRule, m, "row_throughput")); err != nil {
		return nil, err
	}
	if ev.TotalPartitionsMerged, err = coerceInt(capture(endRule, m, "total_partitions_merged")); err != nil {
		return nil, err
	}
	if ev.TotalKeysWritten, err = coerceInt(capture(endRule, m, "total_keys_written")); err != nil {
		return nil, err
	}

	// Partition throughput is optional in the line grammar.
	if raw := capture(endRule, m, "partition_throughput"); raw != "" {
		pt, err := coerceInt(raw)
		if err != nil {
			return nil, err
		}
		ev.PartitionThroughput = &pt
		ev.PartitionThroughputUnit = capture(endRule, m, "partition_throughput_unit")
	} else {
		ev.PartitionThroughputUnit = model.DefaultRateUnit
	}

	return ev, nil
}

// checkTaskID flags task identifiers that are hex-and-dash shaped but not
// actual UUIDs. The grammar accepts them regardless.
func (c *Classifier) checkTaskID(id string) {
	if _, err := uuid.Parse(id); err != nil {
		c.logger.Debug("task identifier is not a valid UUID",
			zap.String("task_id", id))
	}
}

// splitPathList splits a bracketed, comma-separated path list. Entries are
// trimmed and empties dropped: some server versions leave a trailing ", "
// inside the brackets.
func splitPathList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// withDefault substitutes a unit default for an empty capture.
func withDefault(raw, def string) string {
	if raw == "" {
		return def
	}
	return raw
}

// capture returns the named group's text from a FindStringSubmatch result.
func capture(re *regexp.Regexp, m []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(m) {
		return ""
	}
	return m[idx]
}

// coerceInt parses an integer field, stripping grouping separators first:
// the log writes counts like "12,345".
func coerceInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q as integer: %w", raw, err)
	}
	return n, nil
}

// coerceFloat parses a floating-point field.
func coerceFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q as number: %w", raw, err)
	}
	return f, nil
}
