package correlator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casskit/compactlog/internal/model"
	"github.com/casskit/compactlog/internal/parser"
)

const taskID = "ab9dd040-afe6-11ef-ad7f-a9588d22a314"

func startEvent(id, timestamp string, inputs map[string]model.Level) *parser.StartEvent {
	return &parser.StartEvent{
		ID:            id,
		Timestamp:     timestamp,
		Keyspace:      "keyspace1",
		Table:         "standard1",
		InputSSTables: inputs,
	}
}

func endEvent(id, timestamp string) *parser.EndEvent {
	return &parser.EndEvent{
		ID:                    id,
		Timestamp:             timestamp,
		OutputSSTables:        map[string]model.Level{"na-3-big": 0},
		OriginalSize:          10.0,
		OriginalSizeUnit:      "MiB",
		CompactedSize:         4.0,
		CompactedSizeUnit:     "MiB",
		Duration:              500,
		DurationUnit:          "ms",
		ReadThroughput:        20.0,
		ReadThroughputUnit:    "MiB/s",
		WriteThroughput:       8.0,
		WriteThroughputUnit:   "MiB/s",
		RowThroughput:         12345,
		RowThroughputUnit:     "s",
		TotalPartitionsMerged: 1234,
		TotalKeysWritten:      1000,
		PartitionMergeCounts:  "{1:1110, 2:62}",
	}
}

func TestApplyStartThenEnd(t *testing.T) {
	c := New(nil)
	inputs := map[string]model.Level{"na-1-big": 2, "na-2-big": 2}

	c.Apply(startEvent(taskID, "2024-12-01 14:17:52,836", inputs))
	c.Apply(endEvent(taskID, "2024-12-01 14:17:55,468"))

	require.Equal(t, 1, c.Len())
	task, ok := c.Get(taskID)
	require.True(t, ok)
	require.True(t, task.Complete())

	// Nothing from either event is lost.
	assert.Equal(t, taskID, task.TaskID)
	assert.Equal(t, "2024-12-01 14:17:52,836", task.Start.Timestamp)
	assert.Equal(t, "keyspace1", task.Start.Keyspace)
	assert.Equal(t, "standard1", task.Start.Table)
	assert.Equal(t, inputs, task.Start.InputSSTables)
	assert.Equal(t, "2024-12-01 14:17:55,468", task.End.Timestamp)
	assert.Equal(t, map[string]model.Level{"na-3-big": 0}, task.End.OutputSSTables)
	assert.Equal(t, 10.0, task.End.OriginalSize)
	assert.Equal(t, 4.0, task.End.CompactedSize)
	assert.Equal(t, int64(500), task.End.Duration)
}

func TestApplyEndThenStart(t *testing.T) {
	// End before start must produce the same merged record.
	inOrder := New(nil)
	inOrder.Apply(startEvent(taskID, "ts-start", map[string]model.Level{"a": 2}))
	inOrder.Apply(endEvent(taskID, "ts-end"))

	reversed := New(nil)
	reversed.Apply(endEvent(taskID, "ts-end"))
	reversed.Apply(startEvent(taskID, "ts-start", map[string]model.Level{"a": 2}))

	a, _ := inOrder.Get(taskID)
	b, _ := reversed.Get(taskID)
	assert.Equal(t, a, b)
}

func TestApplyEndOnlyIsValid(t *testing.T) {
	c := New(nil)
	c.Apply(endEvent(taskID, "ts-end"))

	task, ok := c.Get(taskID)
	require.True(t, ok)
	assert.Nil(t, task.Start)
	require.NotNil(t, task.End)
	assert.False(t, task.Complete())
}

func TestApplySecondStartWins(t *testing.T) {
	c := New(nil)
	c.Apply(startEvent(taskID, "ts-1", map[string]model.Level{"a": 1}))
	c.Apply(endEvent(taskID, "ts-end"))
	c.Apply(startEvent(taskID, "ts-2", map[string]model.Level{"b": 3}))

	task, _ := c.Get(taskID)
	// The second start fully replaces start-derived fields ...
	assert.Equal(t, "ts-2", task.Start.Timestamp)
	assert.Equal(t, map[string]model.Level{"b": 3}, task.Start.InputSSTables)
	// ... and end-derived fields are untouched.
	require.NotNil(t, task.End)
	assert.Equal(t, "ts-end", task.End.Timestamp)
}

func TestTaskIDsFirstSeenOrder(t *testing.T) {
	c := New(nil)
	c.Apply(endEvent("id-b", "ts"))
	c.Apply(startEvent("id-a", "ts", nil))
	c.Apply(endEvent("id-b", "ts2"))

	assert.Equal(t, []string{"id-b", "id-a"}, c.TaskIDs())
}

func TestMergeFromReproducesSequentialResult(t *testing.T) {
	// Sequential reference: both files applied in order.
	sequential := New(nil)
	sequential.Apply(startEvent(taskID, "ts-1", map[string]model.Level{"a": 1}))
	sequential.Apply(startEvent(taskID, "ts-2", map[string]model.Level{"b": 2}))
	sequential.Apply(endEvent("other", "ts-end"))

	// Parallel shape: one correlator per file, merged in file order.
	file1 := New(nil)
	file1.Apply(startEvent(taskID, "ts-1", map[string]model.Level{"a": 1}))
	file2 := New(nil)
	file2.Apply(startEvent(taskID, "ts-2", map[string]model.Level{"b": 2}))
	file2.Apply(endEvent("other", "ts-end"))

	merged := New(nil)
	merged.MergeFrom(file1)
	merged.MergeFrom(file2)

	assert.Equal(t, sequential.Tasks(), merged.Tasks())
}
