package datasets

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVOptions(t *testing.T) {
	content := "# exported\nts;a;b;c\n2021-01-01;1;2;3\n2021-01-02;4;5;6\n2021-01-03;7;8;9\n"

	table, err := readCSV(strings.NewReader(content), Kwargs{
		"sep":         ";",
		"skiprows":    int64(1),
		"nrows":       int64(2),
		"usecols":     []any{"ts", "b"},
		"index_col":   int64(0),
		"parse_dates": []any{"ts"},
	})
	require.NoError(t, err)

	assert.Equal(t, "ts", table.IndexName)
	assert.Equal(t, DatetimeIndex, table.IndexKind)
	assert.Equal(t, []string{"b"}, table.Header)
	assert.Equal(t, [][]string{{"2", "5"}}, table.Cells)
	assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), table.Times[1])
}

func TestReadCSVByteOrderMark(t *testing.T) {
	table, err := readCSV(strings.NewReader("\ufeffdate,x\n2021-01-01,1\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "x"}, table.Header)

	table, err = readCSV(strings.NewReader("\ufeffdate,x\n2021-01-01,1\n"), Kwargs{"index_col": "date"})
	require.NoError(t, err)
	assert.Equal(t, "date", table.IndexName)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kwargs  Kwargs
		wantErr string
	}{
		{"empty", "", nil, "no columns to parse"},
		{"bad sep", "a,b\n", Kwargs{"sep": ",,"}, "single character"},
		{"unknown usecols", "a,b\n1,2\n", Kwargs{"usecols": []any{"c"}}, `unknown column "c"`},
		{"unknown index_col", "a,b\n1,2\n", Kwargs{"index_col": "c"}, `unknown column "c"`},
		{"index_col position", "a,b\n1,2\n", Kwargs{"index_col": int64(5)}, "out of range"},
		{"too many fields", "a,b\n1,2,3\n", nil, "expected 2 fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(strings.NewReader(tt.content), tt.kwargs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadCSVUnparsableDatesKeepObjectIndex(t *testing.T) {
	table, err := readCSV(strings.NewReader("id,x\nfoo,1\n"), Kwargs{"index_col": "id", "parse_dates": true})
	require.NoError(t, err)
	assert.Equal(t, ObjectIndex, table.IndexKind)
	assert.Equal(t, []string{"foo"}, table.Labels)
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		kwargs    Kwargs
		kind      IndexKind
		header    []string
		firstCell string
	}{
		{
			name:      "columns",
			content:   `{"x": {"2021-01-01": 1, "2021-01-02": 2}, "y": {"2021-01-02": 4}}`,
			kind:      DatetimeIndex,
			header:    []string{"x", "y"},
			firstCell: "1",
		},
		{
			name:      "columns epoch millis",
			content:   `{"x": {"1609459200000": 1.5}}`,
			kind:      DatetimeIndex,
			header:    []string{"x"},
			firstCell: "1.5",
		},
		{
			name:      "index",
			content:   `{"2021-01-01": {"x": 1, "y": null}}`,
			kwargs:    Kwargs{"orient": "index"},
			kind:      DatetimeIndex,
			header:    []string{"x", "y"},
			firstCell: "1",
		},
		{
			name:      "records",
			content:   `[{"date": "2021-01-01", "x": 1}, {"date": "2021-01-02", "x": 2, "z": true}]`,
			kwargs:    Kwargs{"orient": "records"},
			kind:      RangeIndex,
			header:    []string{"date", "x", "z"},
			firstCell: "2021-01-01",
		},
		{
			name:      "lines",
			content:   "{\"date\": \"2021-01-01\", \"x\": 1}\n\n{\"date\": \"2021-01-02\", \"x\": 2}\n",
			kwargs:    Kwargs{"orient": "records", "lines": true},
			kind:      RangeIndex,
			header:    []string{"date", "x"},
			firstCell: "2021-01-01",
		},
		{
			name:      "split",
			content:   `{"columns": ["x"], "index": ["2021-01-01"], "data": [[3]]}`,
			kwargs:    Kwargs{"orient": "split"},
			kind:      DatetimeIndex,
			header:    []string{"x"},
			firstCell: "3",
		},
		{
			name:      "no axis conversion",
			content:   `{"x": {"2021-01-01": 1}}`,
			kwargs:    Kwargs{"convert_axes": false},
			kind:      ObjectIndex,
			header:    []string{"x"},
			firstCell: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := readJSON(strings.NewReader(tt.content), tt.kwargs)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, table.IndexKind)
			assert.Equal(t, tt.header, table.Header)
			assert.Equal(t, tt.firstCell, table.Cells[0][0])
		})
	}
}

func TestReadJSONMissingCellsAreEmpty(t *testing.T) {
	table, err := readJSON(strings.NewReader(`[{"x": 1}, {"y": 2}]`), Kwargs{"orient": "records"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", ""}, {"", "2"}}, table.Cells)
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kwargs  Kwargs
		wantErr string
	}{
		{"bad orient", `{}`, Kwargs{"orient": "table"}, "orient: expected one of"},
		{"nested", `[{"x": [1]}]`, Kwargs{"orient": "records"}, "nested values"},
		{"lines orient", `{}`, Kwargs{"orient": "index", "lines": true}, "lines=true requires"},
		{"split shape", `{"columns": ["x", "y"], "data": [[1]]}`, Kwargs{"orient": "split"}, "row 0 has 1 values"},
		{"not an object", `[1, 2]`, nil, "expected a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readJSON(strings.NewReader(tt.content), tt.kwargs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
