package types

import (
	"fmt"
	"strings"
)

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID || typesIn == nil {
		return "?"
	}
	if depth > 6 {
		return "..."
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindVoid, KindBool, KindChar, KindInt, KindNull:
		return tt.Kind.String()
	case KindPointer:
		return "*" + labelDepth(typesIn, tt.Elem, depth+1)
	case KindArray:
		elem := labelDepth(typesIn, tt.Elem, depth+1)
		if tt.Count == ArrayDynamicLength {
			return elem + "[]"
		}
		return fmt.Sprintf("%s[%d]", elem, tt.Count)
	case KindStruct, KindInterface:
		if info, ok := typesIn.Nominal(id); ok {
			return info.Name
		}
		return "?"
	case KindFn:
		info, ok := typesIn.FnInfo(id)
		if !ok {
			return "fn(?)"
		}
		params := make([]string, len(info.Params))
		for i, p := range info.Params {
			params[i] = labelDepth(typesIn, p, depth+1)
		}
		out := "fn(" + strings.Join(params, ", ") + ")"
		if info.Result != typesIn.builtins.Void {
			out += " " + labelDepth(typesIn, info.Result, depth+1)
		}
		return out
	case KindProperty:
		info, ok := typesIn.PropertyInfo(id)
		if !ok {
			return "property ?"
		}
		var acc []string
		if info.HasGet {
			acc = append(acc, "get")
		}
		if info.HasSet {
			acc = append(acc, "set")
		}
		return fmt.Sprintf("property %s {%s}", labelDepth(typesIn, info.Result, depth+1), strings.Join(acc, " "))
	case KindList:
		members, _ := typesIn.ListMembers(id)
		parts := make([]string, len(members))
		for i, m := range members {
			parts[i] = labelDepth(typesIn, m, depth+1)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindNamespace:
		path, _ := typesIn.NamespacePath(id)
		return "namespace " + path
	default:
		return tt.Kind.String()
	}
}
