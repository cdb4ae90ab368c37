package sqlrewrite

import "strings"

// MightHaveFunctionCalls reports whether sql looks like it calls one of the
// mapped functions, so that statements which cannot qualify skip parsing.
//
// A call counts only when the name is preceded by a single space and followed
// by "(", e.g. "FROM func(". Calls directly after another character, such as
// "(func(" or a tab, are missed.
func MightHaveFunctionCalls(sql string, mappings Mappings) bool {
	upper := strings.ToUpper(sql)
	for name := range mappings {
		if strings.Contains(upper, " "+name+"(") {
			return true
		}
	}
	return false
}
