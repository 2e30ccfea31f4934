package loadgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRowOutOfRange is returned when a QueryResult row index does not exist.
	ErrRowOutOfRange = errors.New("row index out of range")

	// ErrUnknownColumn is returned when a QueryResult column name does not exist.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNotAnInteger is returned when a QueryResult value cannot be read as int64.
	ErrNotAnInteger = errors.New("value is not an integer")
)

const nullCell = "NULL"

// QueryResult is the tabular result of an ad-hoc query.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of rows in the result.
func (r QueryResult) RowCount() int {
	return len(r.Rows)
}

// Int64 reads the integer value at row/column. A SQL NULL yields isNull == true and a zero value.
func (r QueryResult) Int64(row int, column string) (value int64, isNull bool, err error) {
	if row < 0 || row >= len(r.Rows) {
		return 0, false, errors.Join(ErrRowOutOfRange, fmt.Errorf("row %d of %d", row, len(r.Rows)))
	}

	idx := r.columnIndex(column)
	if idx < 0 || idx >= len(r.Rows[row]) {
		return 0, false, errors.Join(ErrUnknownColumn, fmt.Errorf("column %q", column))
	}

	switch v := r.Rows[row][idx].(type) {
	case nil:
		return 0, true, nil
	case int64:
		return v, false, nil
	case int32:
		return int64(v), false, nil
	case int:
		return int64(v), false, nil
	case int16:
		return int64(v), false, nil
	case uint32:
		return int64(v), false, nil
	case float64:
		return int64(v), false, nil
	case []byte:
		parsed, parseErr := strconv.ParseInt(string(v), 10, 64)
		if parseErr != nil {
			return 0, false, errors.Join(ErrNotAnInteger, parseErr)
		}
		return parsed, false, nil
	case string:
		parsed, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr != nil {
			return 0, false, errors.Join(ErrNotAnInteger, parseErr)
		}
		return parsed, false, nil
	default:
		return 0, false, errors.Join(ErrNotAnInteger, fmt.Errorf("type %T", v))
	}
}

// FormattedString renders the result as an aligned text table with a header line.
func (r QueryResult) FormattedString() string {
	widths := make([]int, len(r.Columns))
	cells := make([][]string, len(r.Rows))

	for i, column := range r.Columns {
		widths[i] = len(column)
	}

	for i, row := range r.Rows {
		cells[i] = make([]string, len(r.Columns))
		for j := range r.Columns {
			var value any
			if j < len(row) {
				value = row[j]
			}
			cells[i][j] = formatCell(value)
			widths[j] = max(widths[j], len(cells[i][j]))
		}
	}

	var b strings.Builder
	writeLine := func(values []string) {
		for j, value := range values {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(value)
			b.WriteString(strings.Repeat(" ", widths[j]-len(value)))
		}
		b.WriteByte('\n')
	}

	writeLine(r.Columns)

	separators := make([]string, len(r.Columns))
	for j := range r.Columns {
		separators[j] = strings.Repeat("-", widths[j])
	}
	writeLine(separators)

	for _, row := range cells {
		writeLine(row)
	}

	return b.String()
}

func (r QueryResult) columnIndex(column string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return nullCell
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
