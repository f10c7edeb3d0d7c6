package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/casskit/compactlog/internal/errors"
	"github.com/casskit/compactlog/internal/model"
)

// dataMarker separates the canonical SSTable name from the physical
// component suffix ("-Data.db", "-Index.db", ...) the engine appends.
const dataMarker = "-Data"

// filenameRule splits a path's final component into the SSTable name and
// an optional ":level=<digits>" suffix.
var filenameRule = regexp.MustCompile(`^(.*?)(?::level=(\d+))?$`)

// DecomposeLocation extracts the keyspace and table from an SSTable path.
// Paths follow the engine's data layout:
//
//	/.../<keyspace>/<table>-<table-id>/<sstable-file>
//
// so the keyspace is the third-from-last component and the table is the
// second-from-last component up to its first dash.
func DecomposeLocation(path string) (keyspace, table string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return "", "", errors.NewMalformedPath(path, "too few components")
	}

	keyspace = parts[len(parts)-3]
	tableDir := parts[len(parts)-2]
	if tableDir == "" {
		return "", "", errors.NewMalformedPath(path, "empty table directory")
	}

	table = strings.SplitN(tableDir, "-", 2)[0]
	return keyspace, table, nil
}

// DecomposeFilename extracts the canonical SSTable name and its level from
// an SSTable path. The level comes from a ":level=<digits>" suffix when
// present (LevelNone otherwise), and the name is truncated at the first
// "-Data" marker: the engine splits one logical SSTable into several
// physical files sharing that prefix.
func DecomposeFilename(path string) (string, model.Level, error) {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "", model.LevelNone, errors.NewMalformedPath(path, "empty file name")
	}

	name := last
	level := model.LevelNone
	if m := filenameRule.FindStringSubmatch(last); m != nil {
		name = m[1]
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return "", model.LevelNone, errors.NewMalformedPath(path, "invalid level suffix")
			}
			level = model.Level(n)
		}
	}

	name, _, _ = strings.Cut(name, dataMarker)
	return name, level, nil
}
