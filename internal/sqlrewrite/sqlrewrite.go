// Package sqlrewrite rewrites SELECT statements that call a pseudo
// table-valued function into plain SQL.
//
// A statement such as
//
//	SELECT foo FROM func('bar')
//
// is rewritten to read the function's result, a JSON array of tuples, through
// json_each and json_extract:
//
//	WITH _ersatz_1 AS (
//	  SELECT json_extract(value, '$[0]') AS foo
//	  FROM json_each((SELECT func('bar')))
//	) SELECT foo FROM _ersatz_1
//
// Only a FROM clause with exactly one entry that is a bare function call is
// rewritten. Aliases, qualified names, joins and other shapes are returned
// unchanged.
package sqlrewrite

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"

	"ersatz/internal/pgtree"
)

// cteNamePrefix prefixes the names of generated common table expressions.
const cteNamePrefix = "_ersatz_"

// ErrParse wraps errors from the SQL parser.
var ErrParse = errors.New("parse SQL")

// Rewrite rewrites every qualifying SELECT in sql using the column mappings.
// When nothing qualifies the input is returned byte-for-byte. Keys in
// mappings must be upper-case. Column lists are checked only for functions
// the statement actually calls.
func Rewrite(sql string, mappings Mappings) (string, error) {
	if err := mappings.validateNames(); err != nil {
		return "", err
	}

	if !MightHaveFunctionCalls(sql, mappings) {
		return sql, nil
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, err)
	}

	rc := newRewriteContext(mappings)
	if _, err := pgtree.Transform(tree, rc.visit); err != nil {
		return "", err
	}

	if !rc.rewritten {
		return sql, nil
	}

	output, err := pg_query.Deparse(tree)
	if err != nil {
		return "", fmt.Errorf("deparse SQL: %w", err)
	}
	return output, nil
}

// rewriteContext holds the state of a single Rewrite call.
type rewriteContext struct {
	mappings  Mappings
	counter   int
	rewritten bool

	// generated holds the SELECTs built from the template. They are walked
	// so that calls nested in the original arguments are still found, but
	// never rewritten themselves.
	generated map[*pg_query.SelectStmt]struct{}
}

func newRewriteContext(mappings Mappings) *rewriteContext {
	return &rewriteContext{
		mappings:  mappings,
		generated: make(map[*pg_query.SelectStmt]struct{}),
	}
}

func (rc *rewriteContext) visit(msg proto.Message) (proto.Message, error) {
	sel, ok := msg.(*pg_query.SelectStmt)
	if !ok {
		return msg, nil
	}
	if _, ok := rc.generated[sel]; ok {
		return sel, nil
	}

	call := singleFunctionSource(sel)
	if call == nil {
		return sel, nil
	}

	name := functionName(call)
	columns, ok := rc.mappings.Columns(name)
	if !ok {
		return sel, nil
	}
	if err := validateColumns(name, columns); err != nil {
		return nil, err
	}

	rc.counter++
	cteName := fmt.Sprintf("%s%d", cteNamePrefix, rc.counter)

	replacement, err := BuildReplacement(columns, call)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cteName, err)
	}
	rc.generated[replacement] = struct{}{}

	attachCTE(sel, cteName, replacement)
	rc.rewritten = true
	return sel, nil
}

// singleFunctionSource returns the function call when the SELECT's FROM
// clause is exactly one bare, unqualified, unaliased function call.
func singleFunctionSource(sel *pg_query.SelectStmt) *pg_query.FuncCall {
	from := sel.GetFromClause()
	if len(from) != 1 {
		return nil
	}

	rf := from[0].GetRangeFunction()
	if rf == nil || rf.GetAlias() != nil || rf.GetLateral() || rf.GetOrdinality() ||
		rf.GetIsRowsfrom() || len(rf.GetColdeflist()) > 0 || len(rf.GetFunctions()) != 1 {
		return nil
	}

	// Each entry is a two-item list: the call and its column definitions.
	items := rf.GetFunctions()[0].GetList().GetItems()
	if len(items) == 0 {
		return nil
	}
	if len(items) > 1 && len(items[1].GetList().GetItems()) > 0 {
		return nil
	}

	call := items[0].GetFuncCall()
	if call == nil || len(call.GetFuncname()) != 1 {
		return nil
	}
	return call
}

func functionName(call *pg_query.FuncCall) string {
	return strings.ToUpper(call.GetFuncname()[0].GetString_().GetSval())
}

// attachCTE points the SELECT's FROM clause at cteName and binds body to that
// name in the SELECT's WITH clause, after any CTEs already there.
func attachCTE(sel *pg_query.SelectStmt, cteName string, body *pg_query.SelectStmt) {
	sel.FromClause = []*pg_query.Node{{
		Node: &pg_query.Node_RangeVar{
			RangeVar: &pg_query.RangeVar{
				Relname:        cteName,
				Inh:            true,
				Relpersistence: "p",
				Location:       -1,
			},
		},
	}}

	cte := &pg_query.Node{
		Node: &pg_query.Node_CommonTableExpr{
			CommonTableExpr: &pg_query.CommonTableExpr{
				Ctename:         cteName,
				Ctematerialized: pg_query.CTEMaterialize_CTEMaterializeDefault,
				Ctequery: &pg_query.Node{
					Node: &pg_query.Node_SelectStmt{SelectStmt: body},
				},
				Location: -1,
			},
		},
	}

	if sel.WithClause == nil {
		sel.WithClause = &pg_query.WithClause{Location: -1}
	}
	sel.WithClause.Ctes = append(sel.WithClause.Ctes, cte)
}
