package records

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DuckStore {
	t.Helper()
	ds, err := NewDuckStore(t.TempDir(), "test", Options{Threads: 1, MemoryLimit: "256MB"})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func sampleRecords() []extract.Record {
	return []extract.Record{
		{"Class": "IFCFLOWSEGMENT", "GlobalId": "g-1", "Name": "Rura PE 32", "Długość": "500", "Szerokość": "", "Wysokość": ""},
		{"Class": "IfcWall", "GlobalId": "g-2", "Name": "Ściana 100%"},
		{"Class": "IFCFLOWSEGMENT", "Name": "Rura stal"},
		{"Typ systemu": "Kanalizacja"},
	}
}

func TestDuckStore_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)

	require.NoError(t, ds.Append(ctx, sampleRecords()...))
	require.NoError(t, ds.Finalize(ctx))
	assert.Equal(t, 4, ds.Len())

	recs, total, err := ds.Query(ctx, QueryParams{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, sampleRecords(), recs, "records come back in input order, unchanged")

	recs, total, err = ds.Query(ctx, QueryParams{Class: "ifcflowsegment"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Rura PE 32", recs[0]["Name"])
	assert.Equal(t, "Rura stal", recs[1]["Name"])

	recs, total, err = ds.Query(ctx, QueryParams{Search: "rura pe"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "g-1", recs[0]["GlobalId"])

	_, total, err = ds.Query(ctx, QueryParams{Search: "100%"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "wildcards in the search term are literal")

	recs, total, err = ds.Query(ctx, QueryParams{Class: "IfcDoor"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, recs)
}

func TestDuckStore_Paging(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)
	ds.batchSize = 7

	for i := 0; i < 25; i++ {
		require.NoError(t, ds.Append(ctx, extract.Record{"GlobalId": fmt.Sprintf("id-%02d", i)}))
	}
	require.NoError(t, ds.Finalize(ctx))

	recs, total, err := ds.Query(ctx, QueryParams{}, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, recs, 5)
	assert.Equal(t, "id-20", recs[0]["GlobalId"])

	all, err := ds.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 25)
	assert.Equal(t, "id-24", all[24]["GlobalId"])
}

func TestDuckStore_Classes(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)
	require.NoError(t, ds.Append(ctx, sampleRecords()...))
	require.NoError(t, ds.Finalize(ctx))

	classes, err := ds.Classes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"IFCFLOWSEGMENT", "IfcWall"}, classes)
}

func TestDuckStore_AppendAfterFinalize(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)
	require.NoError(t, ds.Finalize(ctx))
	assert.Error(t, ds.Append(ctx, extract.Record{}))
}

func TestDuckStore_CloseRemovesFile(t *testing.T) {
	ds, err := NewDuckStore(t.TempDir(), "close", DefaultOptions())
	require.NoError(t, err)
	path := ds.dbPath

	require.NoError(t, ds.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "abc", RecordID(extract.Record{"GlobalId": " abc "}))

	a := RecordID(extract.Record{"Class": "IfcWall", "Name": "W1"})
	b := RecordID(extract.Record{"Name": "W1", "Class": "IfcWall"})
	c := RecordID(extract.Record{"Class": "IfcWall", "Name": "W2"})
	assert.Equal(t, a, b, "hash does not depend on map order")
	assert.NotEqual(t, a, c)
	assert.Equal(t, byte('h'), a[0])
}

func TestBuildWhereClause(t *testing.T) {
	where, args := buildWhereClause(QueryParams{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildWhereClause(QueryParams{Class: " IfcWall ", Search: "a_b"})
	assert.Contains(t, where, "lower(class) = lower(?)")
	assert.Contains(t, where, " AND ")
	assert.Equal(t, []any{"IfcWall", `%a\_b%`}, args)
}
