package sqlrewrite

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"

	"ersatz/internal/pgtree"
)

// placeholderName is the function the template calls in place of the
// rewritten one. It is lower-case so the parser keeps it as written, and
// Mappings.Validate rejects it as a key.
const placeholderName = "__ersatz_placeholder__"

// ErrPlaceholder is returned when the template does not hold exactly one
// placeholder call, or when the call to splice in already contains one.
var ErrPlaceholder = errors.New("template placeholder mismatch")

// BuildReplacement returns the SELECT that unpacks call's JSON result into
// columns:
//
//	SELECT json_extract(value, '$[0]') AS "col0", ...
//	FROM json_each((SELECT call(args...)))
//
// call is embedded as is, with its arguments untouched.
func BuildReplacement(columns []string, call *pg_query.FuncCall) (*pg_query.SelectStmt, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	if call == nil {
		return nil, errors.New("function call is nil")
	}
	if containsPlaceholder(call) {
		return nil, fmt.Errorf("%w: call contains %s()", ErrPlaceholder, placeholderName)
	}

	tree, err := pg_query.Parse(renderTemplate(columns))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	stmts := tree.GetStmts()
	if len(stmts) != 1 || stmts[0].GetStmt().GetSelectStmt() == nil {
		return nil, fmt.Errorf("template is not a single SELECT")
	}
	sel := stmts[0].GetStmt().GetSelectStmt()

	// The parser truncates long identifiers; keep the names as given.
	targets := sel.GetTargetList()
	for i, col := range columns {
		if rt := targets[i].GetResTarget(); rt != nil {
			rt.Name = col
		}
	}

	// Splice by setting the placeholder's node; the call itself is not walked.
	var slots []*pg_query.Node
	pgtree.Walk(sel, func(msg proto.Message) bool {
		node, ok := msg.(*pg_query.Node)
		if !ok {
			return true
		}
		if fc := node.GetFuncCall(); fc != nil && isPlaceholder(fc) {
			slots = append(slots, node)
			return false
		}
		return true
	})
	if len(slots) != 1 {
		return nil, fmt.Errorf("%w: found %d calls", ErrPlaceholder, len(slots))
	}
	slots[0].Node = &pg_query.Node_FuncCall{FuncCall: call}

	return sel, nil
}

func renderTemplate(columns []string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "json_extract(value, '$[%d]') AS %s", i, quoteIdent(col))
	}
	fmt.Fprintf(&b, " FROM json_each((SELECT %s()))", placeholderName)
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func containsPlaceholder(call *pg_query.FuncCall) bool {
	found := false
	pgtree.Walk(call, func(msg proto.Message) bool {
		if fc, ok := msg.(*pg_query.FuncCall); ok && isPlaceholder(fc) {
			found = true
		}
		return !found
	})
	return found
}

func isPlaceholder(fc *pg_query.FuncCall) bool {
	parts := fc.GetFuncname()
	return len(parts) == 1 && parts[0].GetString_().GetSval() == placeholderName
}
