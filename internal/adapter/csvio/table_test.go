package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := "\ufeff;N°;Time;Event\n0;1;10:00:01;start\n1;2;10:00:02\n2;3;10:00:03;stop;extra\n"

	table, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	want := &Table{
		Header: []string{"", "N°", "Time", "Event"},
		Rows: [][]string{
			{"0", "1", "10:00:01", "start"},
			{"1", "2", "10:00:02", ""},
			{"2", "3", "10:00:03", "stop"},
		},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, table.DropIndexColumn())
	assert.Equal(t, []string{"N°", "Time", "Event"}, table.Header)
	assert.Equal(t, []string{"1", "10:00:01", "start"}, table.Rows[0])
	assert.False(t, table.DropIndexColumn(), "named first column must stay")
	assert.Equal(t, 0, table.ColumnIndex("N°"))
	assert.Equal(t, -1, table.ColumnIndex("missing"))
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.Error(t, err)
}

func TestDropIndexColumn_Unnamed(t *testing.T) {
	table := &Table{Header: []string{"Unnamed: 0", "N°"}, Rows: [][]string{{"0", "1"}}}
	assert.True(t, table.DropIndexColumn())
	assert.Equal(t, []string{"N°"}, table.Header)
	assert.Equal(t, [][]string{{"1"}}, table.Rows)
}

func TestDropEmptyColumns(t *testing.T) {
	table := &Table{
		Header: []string{"N°", "A", "B", "C"},
		Rows: [][]string{
			{"1", "", "x", " "},
			{"2", "", "", ""},
		},
	}
	dropped := table.DropEmptyColumns()
	assert.Equal(t, []string{"A", "C"}, dropped)
	assert.Equal(t, []string{"N°", "B"}, table.Header)
	assert.Equal(t, [][]string{{"1", "x"}, {"2", ""}}, table.Rows)

	noRows := &Table{Header: []string{"N°", "A"}}
	assert.Empty(t, noRows.DropEmptyColumns())
	assert.Len(t, noRows.Header, 2)
}

func TestWriteFile(t *testing.T) {
	table := &Table{
		Header: []string{"N°", "Text"},
		Rows:   [][]string{{"1", "a;b"}, {"2", `say "hi"`}},
	}
	path := filepath.Join(t.TempDir(), "out", "merged.csv")
	require.NoError(t, table.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "N°;Text\n1;\"a;b\"\n2;\"say \"\"hi\"\"\"\n", string(data))

	back, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, table.Rows, back.Rows)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	got, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.CSV"), filepath.Join(dir, "b.csv")}, got)
}
