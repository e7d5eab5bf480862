package workflow

import "strings"

// RenderTemplate replaces every {name} placeholder in tmpl with the textual
// value of the matching context variable. Placeholders without a matching
// variable are left verbatim. Substitution is literal: a substituted value
// is never re-scanned for further placeholders.
func RenderTemplate(tmpl string, ctx Context) string {
	if tmpl == "" || len(ctx) == 0 {
		return tmpl
	}

	pairs := make([]string, 0, len(ctx)*2)
	for key, value := range ctx {
		pairs = append(pairs, "{"+key+"}", text(value))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
