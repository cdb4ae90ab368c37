package sqlrewrite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Mapping validation errors.
var (
	ErrReservedFunctionName = errors.New("function name is reserved")
	ErrNoColumns            = errors.New("function has no columns")
	ErrEmptyColumnName      = errors.New("column name is empty")
)

// Mappings maps an upper-case function name to the ordered names of the
// columns its JSON tuples hold.
type Mappings map[string][]string

// Columns returns the columns for name. name is expected upper-case, as the
// keys are.
func (m Mappings) Columns(name string) ([]string, bool) {
	cols, ok := m[name]
	return cols, ok
}

// Names returns the function names in sorted order.
func (m Mappings) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects mappings the rewriter cannot serve. The template
// placeholder is not a valid function name, and every function needs at
// least one named column.
func (m Mappings) Validate() error {
	if err := m.validateNames(); err != nil {
		return err
	}
	for _, name := range m.Names() {
		if err := validateColumns(name, m[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m Mappings) validateNames() error {
	for name := range m {
		if strings.EqualFold(name, placeholderName) {
			return fmt.Errorf("%q: %w", name, ErrReservedFunctionName)
		}
	}
	return nil
}

func validateColumns(name string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%q: %w", name, ErrNoColumns)
	}
	for i, col := range columns {
		if col == "" {
			return fmt.Errorf("%q column %d: %w", name, i, ErrEmptyColumnName)
		}
	}
	return nil
}
