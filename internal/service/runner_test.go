package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casskit/compactlog/internal/model"
)

const (
	startLine = `DEBUG [CompactionExecutor:2314] 2024-12-01 14:17:52,836  CompactionTask.java:171 - Compacting (ab9dd040-afe6-11ef-ad7f-a9588d22a314) [/var/lib/cassandra/data/keyspace1/standard1-5f8909b1b77011ed83492d3530a51895/na-1-big-Data.db:level=2, /var/lib/cassandra/data/keyspace1/standard1-5f8909b1b77011ed83492d3530a51895/na-2-big-Data.db:level=2]`

	endLine = `DEBUG [CompactionExecutor:2314] 2024-12-01 14:17:55,468  CompactionTask.java:241 - Compacted (ab9dd040-afe6-11ef-ad7f-a9588d22a314) 2 sstables to [/var/lib/cassandra/data/keyspace1/standard1-5f8909b1b77011ed83492d3530a51895/na-3-big,] to level=0.  10.0MiB to 4.0MiB (~40% of original) in 500ms.  Read Throughput = 20.000MiB/s, Write Throughput = 8.000MiB/s, Row Throughput = ~12,345/s.  1,234 total partitions merged to 1,000.  Partition merge counts were {1:1110, 2:62}`

	multiOutputLine = `DEBUG [CompactionExecutor:2] 2024-12-01 14:19:00,000  CompactionTask.java:241 - Compacted (f00dd040-afe6-11ef-ad7f-a9588d22a314) 2 sstables to [/data/ks/tbl-1f0a/na-8-big, /data/ks/tbl-1f0a/na-9-big] to level=1.  10.0MiB to 4.0MiB (~40% of original) in 500ms.  Read Throughput = 20.000MiB/s, Write Throughput = 8.000MiB/s, Row Throughput = ~1,000/s.  100 total partitions merged to 90.  Partition merge counts were {1:100}`

	noiseLine = `INFO  [main] 2024-12-01 14:00:00,000  StorageService.java:123 - Node started`
)

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeGzipLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	for _, l := range lines {
		_, err := gz.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	return path
}

func TestRunCorrelatesStartAndEnd(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "system.log", noiseLine, startLine, endLine)

	runner := NewRunner(&RunnerConfig{})
	result, err := runner.Run(context.Background(), []string{log})
	require.NoError(t, err)
	require.NoError(t, result.EventErrors)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, uint64(3), result.LinesScanned)
	require.Equal(t, 1, result.Correlator.Len())

	task, ok := result.Correlator.Get("ab9dd040-afe6-11ef-ad7f-a9588d22a314")
	require.True(t, ok)
	require.True(t, task.Complete())
	assert.Equal(t, map[string]model.Level{"na-1-big": 2, "na-2-big": 2}, task.Start.InputSSTables)
	assert.Equal(t, map[string]model.Level{"na-3-big": 0}, task.End.OutputSSTables)
	assert.Equal(t, 10.0, task.End.OriginalSize)
	assert.Equal(t, 4.0, task.End.CompactedSize)
	assert.Equal(t, int64(500), task.End.Duration)
}

func TestRunEndBeforeStartAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeLog(t, dir, "a.log", endLine)
	second := writeLog(t, dir, "b.log", startLine)

	runner := NewRunner(&RunnerConfig{})
	result, err := runner.Run(context.Background(), []string{first, second})
	require.NoError(t, err)

	task, ok := result.Correlator.Get("ab9dd040-afe6-11ef-ad7f-a9588d22a314")
	require.True(t, ok)
	assert.True(t, task.Complete())
}

func TestRunSkipsMissingFile(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "system.log", startLine)
	missing := filepath.Join(dir, "no-such.log")

	runner := NewRunner(&RunnerConfig{})
	result, err := runner.Run(context.Background(), []string{missing, log})
	require.NoError(t, err)
	require.NoError(t, result.EventErrors)

	// The missing file is a warning, not an error; the rest of the batch
	// still lands in the result.
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.Correlator.Len())
}

func TestRunAccumulatesEventErrors(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "system.log", multiOutputLine, startLine)

	runner := NewRunner(&RunnerConfig{})
	result, err := runner.Run(context.Background(), []string{log})
	require.NoError(t, err)

	// The bad event is reported and did not create a record; the good
	// start line on the next line still did.
	require.Error(t, result.EventErrors)
	assert.Contains(t, result.EventErrors.Error(), "more than one output sstable")
	_, ok := result.Correlator.Get("f00dd040-afe6-11ef-ad7f-a9588d22a314")
	assert.False(t, ok)
	_, ok = result.Correlator.Get("ab9dd040-afe6-11ef-ad7f-a9588d22a314")
	assert.True(t, ok)
}

func TestRunReadsGzipInput(t *testing.T) {
	dir := t.TempDir()
	log := writeGzipLog(t, dir, "system.log.gz", startLine, endLine)

	runner := NewRunner(&RunnerConfig{})
	result, err := runner.Run(context.Background(), []string{log})
	require.NoError(t, err)

	task, ok := result.Correlator.Get("ab9dd040-afe6-11ef-ad7f-a9588d22a314")
	require.True(t, ok)
	assert.True(t, task.Complete())
}

func TestRunParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeLog(t, dir, "a.log", startLine, noiseLine),
		writeLog(t, dir, "b.log", endLine),
		writeLog(t, dir, "c.log", multiOutputLine),
	}

	sequential := NewRunner(&RunnerConfig{Workers: 1})
	seqResult, err := sequential.Run(context.Background(), files)
	require.NoError(t, err)

	parallel := NewRunner(&RunnerConfig{Workers: 4})
	parResult, err := parallel.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, seqResult.Correlator.Tasks(), parResult.Correlator.Tasks())
	assert.Equal(t, seqResult.Correlator.TaskIDs(), parResult.Correlator.TaskIDs())
	assert.Equal(t, seqResult.LinesScanned, parResult.LinesScanned)
	require.Error(t, parResult.EventErrors)
}

func TestRunCanceledContext(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "system.log", startLine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&RunnerConfig{})
	_, err := runner.Run(ctx, []string{log})
	require.ErrorIs(t, err, context.Canceled)
}
