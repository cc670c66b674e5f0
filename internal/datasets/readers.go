package datasets

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

var csvOptions = []string{"delimiter", "index_col", "nrows", "parse_dates", "sep", "skiprows", "usecols"}

var jsonOptions = []string{"convert_axes", "lines", "orient"}

func readCSV(r io.Reader, kwargs Kwargs) (*Table, error) {
	sep, err := kwargs.String("sep", ",")
	if err != nil {
		return nil, err
	}
	if sep, err = kwargs.String("delimiter", sep); err != nil {
		return nil, err
	}
	if sep == `\t` {
		sep = "\t"
	}
	if len([]rune(sep)) != 1 {
		return nil, fmt.Errorf("sep: expected a single character, got %q", sep)
	}
	skipRows, err := kwargs.Int("skiprows", 0)
	if err != nil {
		return nil, err
	}
	nRows, err := kwargs.Int("nrows", -1)
	if err != nil {
		return nil, err
	}
	useCols, err := kwargs.Strings("usecols")
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = []rune(sep)[0]
	reader.FieldsPerRecord = -1

	for i := 0; i < skipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("skiprows=%d: %w", skipRows, err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	for row := 0; nRows < 0 || row < nRows; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		for j := range header {
			value := ""
			if j < len(record) {
				value = record[j]
			}
			cells[j] = append(cells[j], value)
		}
	}

	table := &Table{Header: header, Cells: cells}
	if len(useCols) > 0 {
		if err := table.selectColumns(useCols); err != nil {
			return nil, err
		}
	}
	if err := applyIndexOptions(table, kwargs); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table) selectColumns(names []string) error {
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		if t.columnIndex(name) < 0 {
			return fmt.Errorf("usecols: unknown column %q", name)
		}
		keep[name] = true
	}
	var header []string
	var cells [][]string
	for j, name := range t.Header {
		if keep[name] {
			header = append(header, name)
			cells = append(cells, t.Cells[j])
		}
	}
	t.Header, t.Cells = header, cells
	return nil
}

// applyIndexOptions handles index_col and parse_dates.
func applyIndexOptions(t *Table, kwargs Kwargs) error {
	raw, ok := kwargs["index_col"]
	if !ok || raw == false {
		return nil
	}

	pos := -1
	switch v := raw.(type) {
	case string:
		pos = t.columnIndex(v)
		if pos < 0 {
			return fmt.Errorf("index_col: unknown column %q", v)
		}
	case int64, int:
		n, _ := kwargs.Int("index_col", -1)
		if n < 0 || n >= len(t.Header) {
			return fmt.Errorf("index_col: position %d out of range", n)
		}
		pos = n
	default:
		return fmt.Errorf("index_col: expected a column name or position, got %T", raw)
	}
	t.setIndex(pos)

	parse := false
	switch v := kwargs["parse_dates"].(type) {
	case nil:
	case bool:
		parse = v
	default:
		names, err := kwargs.Strings("parse_dates")
		if err != nil {
			return err
		}
		for _, name := range names {
			parse = parse || name == t.IndexName
		}
	}
	if parse {
		t.parseIndexDates()
	}
	return nil
}

type member struct {
	key   string
	value json.RawMessage
}

// decodeMembers decodes a JSON object, keeping the key order.
func decodeMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	return members, nil
}

// scalar returns the text of a JSON scalar. Null is empty.
func scalar(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	case '{', '[':
		return "", errors.New("nested values are not supported")
	default:
		return string(trimmed), nil
	}
}

// columnBuilder collects cells for columns appearing in any order.
type columnBuilder struct {
	header []string
	pos    map[string]int
	cells  [][]string
	rows   int
}

func newColumnBuilder() *columnBuilder {
	return &columnBuilder{pos: make(map[string]int)}
}

func (b *columnBuilder) addRow(members []member) error {
	for j := range b.cells {
		b.cells[j] = append(b.cells[j], "")
	}
	for _, m := range members {
		j, ok := b.pos[m.key]
		if !ok {
			j = len(b.header)
			b.pos[m.key] = j
			b.header = append(b.header, m.key)
			b.cells = append(b.cells, make([]string, b.rows+1))
		}
		value, err := scalar(m.value)
		if err != nil {
			return fmt.Errorf("column %q: %w", m.key, err)
		}
		b.cells[j][b.rows] = value
	}
	b.rows++
	return nil
}

func readJSON(r io.Reader, kwargs Kwargs) (*Table, error) {
	orient, err := kwargs.String("orient", "columns")
	if err != nil {
		return nil, err
	}
	lines, err := kwargs.Bool("lines", false)
	if err != nil {
		return nil, err
	}
	convertAxes, err := kwargs.Bool("convert_axes", true)
	if err != nil {
		return nil, err
	}

	if lines {
		if orient != "records" && orient != "columns" {
			return nil, fmt.Errorf("lines=true requires orient='records', got %q", orient)
		}
		return readJSONLines(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var table *Table
	switch orient {
	case "records":
		table, err = readJSONRecords(data)
	case "columns":
		table, err = readJSONColumns(data)
	case "index":
		table, err = readJSONIndex(data)
	case "split":
		table, err = readJSONSplit(data)
	default:
		return nil, fmt.Errorf("orient: expected one of records, columns, index or split, got %q", orient)
	}
	if err != nil {
		return nil, err
	}
	if convertAxes && table.IndexKind == ObjectIndex {
		table.convertAxis()
	}
	return table, nil
}

func readJSONLines(r io.Reader) (*Table, error) {
	b := newColumnBuilder()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		members, err := decodeMembers(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := b.addRow(members); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Table{Header: b.header, Cells: b.cells}, nil
}

func readJSONRecords(data []byte) (*Table, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("orient='records': %w", err)
	}
	b := newColumnBuilder()
	for i, raw := range records {
		members, err := decodeMembers(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if err := b.addRow(members); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return &Table{Header: b.header, Cells: b.cells}, nil
}

// readJSONColumns reads {"column": {"index": value}}.
func readJSONColumns(data []byte) (*Table, error) {
	columns, err := decodeMembers(data)
	if err != nil {
		return nil, fmt.Errorf("orient='columns': %w", err)
	}

	var labels []string
	rowOf := make(map[string]int)
	values := make([]map[int]string, len(columns))
	header := make([]string, len(columns))
	for j, c := range columns {
		header[j] = c.key
		values[j] = make(map[int]string)
		cells, err := decodeMembers(c.value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.key, err)
		}
		for _, cell := range cells {
			i, ok := rowOf[cell.key]
			if !ok {
				i = len(labels)
				rowOf[cell.key] = i
				labels = append(labels, cell.key)
			}
			if values[j][i], err = scalar(cell.value); err != nil {
				return nil, fmt.Errorf("column %q: %w", c.key, err)
			}
		}
	}

	table := &Table{IndexKind: ObjectIndex, Labels: labels, Header: header, Cells: make([][]string, len(columns))}
	for j := range columns {
		table.Cells[j] = make([]string, len(labels))
		for i, v := range values[j] {
			table.Cells[j][i] = v
		}
	}
	return table, nil
}

// readJSONIndex reads {"index": {"column": value}}.
func readJSONIndex(data []byte) (*Table, error) {
	rows, err := decodeMembers(data)
	if err != nil {
		return nil, fmt.Errorf("orient='index': %w", err)
	}
	b := newColumnBuilder()
	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row.key
		members, err := decodeMembers(row.value)
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", row.key, err)
		}
		if err := b.addRow(members); err != nil {
			return nil, fmt.Errorf("row %q: %w", row.key, err)
		}
	}
	return &Table{IndexKind: ObjectIndex, Labels: labels, Header: b.header, Cells: b.cells}, nil
}

// readJSONSplit reads {"columns": [...], "index": [...], "data": [[...]]}.
func readJSONSplit(data []byte) (*Table, error) {
	var split struct {
		Columns []string            `json:"columns"`
		Index   []json.RawMessage   `json:"index"`
		Data    [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &split); err != nil {
		return nil, fmt.Errorf("orient='split': %w", err)
	}

	table := &Table{Header: split.Columns, Cells: make([][]string, len(split.Columns))}
	for i, row := range split.Data {
		if len(row) != len(split.Columns) {
			return nil, fmt.Errorf("orient='split': row %d has %d values, expected %d", i, len(row), len(split.Columns))
		}
		for j, raw := range row {
			value, err := scalar(raw)
			if err != nil {
				return nil, fmt.Errorf("orient='split': row %d: %w", i, err)
			}
			table.Cells[j] = append(table.Cells[j], value)
		}
	}
	if len(split.Index) > 0 {
		if len(split.Index) != len(split.Data) {
			return nil, fmt.Errorf("orient='split': index has %d values, expected %d", len(split.Index), len(split.Data))
		}
		table.IndexKind = ObjectIndex
		for _, raw := range split.Index {
			label, err := scalar(raw)
			if err != nil {
				return nil, fmt.Errorf("orient='split': index: %w", err)
			}
			table.Labels = append(table.Labels, label)
		}
	}
	return table, nil
}

// convertAxis turns date-like or epoch-millisecond index labels into timestamps.
func (t *Table) convertAxis() {
	times := make([]time.Time, len(t.Labels))
	for i, label := range t.Labels {
		ts, ok := parseIndexLabel(label)
		if !ok {
			return
		}
		times[i] = ts
	}
	t.Times = times
	t.IndexKind = DatetimeIndex
}

// parseIndexLabel parses a timestamp, or epoch milliseconds from 1973 onwards.
func parseIndexLabel(label string) (time.Time, bool) {
	if ts, err := timeseries.ParseTimestamp(label); err == nil {
		return ts, true
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(label), 10, 64)
	if err != nil || ms < 1e11 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
