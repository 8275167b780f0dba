package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *memory.Table {
	return memory.NewTable(
		memory.Item{ID: 1, Source: "a", Metrics: map[string]float64{"m": 0.1}},
		memory.Item{ID: 2, Source: "a", Metrics: map[string]float64{"m": 0.2}},
		memory.Item{ID: 3, Source: "b", Metrics: map[string]float64{"m": 0.4}},
		memory.Item{ID: 4, Source: "b", Metrics: map[string]float64{"m": 0.5}},
		memory.Item{ID: 5, Source: "b", Metrics: map[string]float64{"m": 0.9}},
		memory.Item{ID: 6, Source: "a", Metrics: map[string]float64{"other": 1}},
	)
}

func TestTable_Groups(t *testing.T) {
	groups, err := sampleTable().Groups(context.Background(), domain.GroupRequest{Metric: "m", Thresholds: []float64{0.3}})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{1, 2}, groups[0].MemberIDs)
	assert.Equal(t, []int{3, 4, 5}, groups[1].MemberIDs)
	assert.Equal(t, 3, groups[1].Count)
	assert.Equal(t, "m >= 0.3", groups[1].Label)
}

func TestTable_GroupsBySource(t *testing.T) {
	groups, err := sampleTable().Groups(context.Background(), domain.GroupRequest{
		Filter:     domain.FilterSpec{Sources: []string{"b"}},
		Metric:     "m",
		Thresholds: []float64{0.45},
	})
	require.NoError(t, err)
	assert.Empty(t, groups[0].MemberIDs)
	assert.Equal(t, map[string][]int{"b": {3}}, groups[0].SourceMemberIDs)
	assert.Equal(t, map[string][]int{"b": {4, 5}}, groups[1].SourceMemberIDs)
}

func TestTable_GroupsRejectsDescendingThresholds(t *testing.T) {
	_, err := sampleTable().Groups(context.Background(), domain.GroupRequest{Metric: "m", Thresholds: []float64{0.5, 0.2}})
	assert.Error(t, err)
}

func TestTable_PopulationAndValues(t *testing.T) {
	tbl := sampleTable()
	ids, err := tbl.Population(context.Background(), domain.FilterSpec{ItemIDs: []int{5, 1, 6, 42}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 6}, ids)

	values, err := tbl.Values(context.Background(), "m", []int{1, 6})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: 0.1}, values)
	assert.Equal(t, []string{"m", "other"}, tbl.Metrics())
}

func TestReadCSV(t *testing.T) {
	tbl, err := memory.ReadCSV(strings.NewReader("id,source,score_fuzz,score_detection\n1,a,0.1,0.9\n2,b,,0.3\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	values, err := tbl.Values(context.Background(), "score_fuzz", []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: 0.1}, values)

	_, err = memory.ReadCSV(strings.NewReader("source,m\na,0.1\n"))
	assert.Error(t, err)
	_, err = memory.ReadCSV(strings.NewReader("id,m\nx,0.1\n"))
	assert.Error(t, err)
}

func TestLoadTable_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "table.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("items:\n  - id: 1\n    metrics: {m: 0.5}\n  - id: 2\n    source: x\n    metrics: {m: 0.7}\n"), 0644))
	jsonPath := filepath.Join(dir, "table.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"items":[{"id":3,"metrics":{"m":0.2}}]}`), 0644))

	tbl, err := memory.LoadTable(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	tbl, err = memory.LoadTable(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = memory.LoadTable(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
