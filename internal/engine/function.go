package engine

import (
	"encoding/json"
	"fmt"
)

// Function is a pseudo table-valued function served to SQLite.
//
// SQLite sees it as a scalar function returning a JSON array with one array
// per row. Queries call it in FROM like a table function and the engine
// rewrites them to unpack that JSON.
type Function struct {
	// Name is the function name as written in SQL, matched case-insensitively.
	Name string
	// Columns names the values of each row, in order.
	Columns []string
	// Call produces the rows for one invocation. Arguments arrive as
	// int64, float64, string, []byte or nil.
	Call func(args ...any) ([][]any, error)
}

// StaticFunction returns a Function that yields rows on every call,
// whatever its arguments.
func StaticFunction(name string, columns []string, rows [][]any) Function {
	return Function{
		Name:    name,
		Columns: columns,
		Call: func(...any) ([][]any, error) {
			return rows, nil
		},
	}
}

// scalar adapts f to the signature go-sqlite3 registers.
func (f Function) scalar() func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		rows, err := f.Call(args...)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
		if rows == nil {
			rows = [][]any{}
		}
		for i, row := range rows {
			if len(row) != len(f.Columns) {
				return "", fmt.Errorf("%s: row %d has %d values, want %d", f.Name, i, len(row), len(f.Columns))
			}
		}

		data, err := json.Marshal(rows)
		if err != nil {
			return "", fmt.Errorf("%s: encode rows: %w", f.Name, err)
		}
		return string(data), nil
	}
}
