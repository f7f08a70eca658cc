package bundler

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/matzehuels/livebundle/pkg/module"
)

// defaultBinding names the variable that receives an anonymous default export.
const defaultBinding = "__default"

const ident = `[A-Za-z_$][\w$]*`

var (
	exportListRe       = regexp.MustCompile(`(?m)^export\s*\{([^}]*)\}(\s*from\s*(?:"[^"]*"|'[^']*'))?\s*;?[ \t]*\n?`)
	exportAsDefaultRe  = regexp.MustCompile(`(` + ident + `)\s+as\s+default\b`)
	defaultNamedFuncRe = regexp.MustCompile(`(?m)^export\s+default\s+((?:async\s+)?function\s*\*?\s*(` + ident + `))`)
	defaultAnonFuncRe  = regexp.MustCompile(`(?m)^export\s+default\s+((?:async\s+)?function\s*\*?\s*\()`)
	defaultNamedClsRe  = regexp.MustCompile(`(?m)^export\s+default\s+class\s+(` + ident + `)`)
	defaultAnonClsRe   = regexp.MustCompile(`(?m)^export\s+default\s+class\b`)
	defaultIdentRe     = regexp.MustCompile(`(?m)^export\s+default\s+(` + ident + `)\s*;?[ \t]*$`)
	defaultExprRe      = regexp.MustCompile(`(?m)^export\s+default\s+`)
	exportDeclRe       = regexp.MustCompile(`(?m)^export\s+((?:const|let|var|function|class|async)\b)`)

	componentFuncRe = regexp.MustCompile(`(?m)^(?:async\s+)?function\s*\*?\s*([A-Z][\w$]*)`)
	componentVarRe  = regexp.MustCompile(`(?m)^(?:const|let|var)\s+([A-Z][\w$]*)\s*=`)

	// The bundle prints a "// <namespace>:<path>" comment ahead of each module.
	entryMarkerRe = regexp.MustCompile(`(?m)^// ` + regexp.QuoteMeta(string(module.NamespaceEntry)+":") + `.*\n?`)
)

// entryStart returns the offset where the entry module's code begins. Code
// above it belongs to dependencies and is never rewritten. Without a marker
// the whole code is treated as the entry.
func entryStart(code string) int {
	locs := entryMarkerRe.FindAllStringIndex(code, -1)
	if len(locs) == 0 {
		return 0
	}
	return locs[len(locs)-1][1]
}

// StripExports removes module export syntax from code, keeping every
// declaration in place. It returns the rewritten code and the local name
// bound to the default export, or "" when there is none. Only the entry
// module is rewritten. A binding named by an export list wins over any
// "export default" statement.
func StripExports(code string) (string, string) {
	at := entryStart(code)
	head, code := code[:at], code[at:]

	var def string
	setDef := func(name string) {
		if def == "" {
			def = name
		}
	}

	code = exportListRe.ReplaceAllStringFunc(code, func(stmt string) string {
		parts := exportListRe.FindStringSubmatch(stmt)
		if parts[2] != "" {
			// Re-exports have no local binding to keep.
			return ""
		}
		if m := exportAsDefaultRe.FindStringSubmatch(parts[1]); m != nil {
			setDef(m[1])
		}
		return ""
	})

	if m := defaultNamedFuncRe.FindStringSubmatch(code); m != nil {
		setDef(m[2])
		code = defaultNamedFuncRe.ReplaceAllString(code, "$1")
	}
	if defaultAnonFuncRe.MatchString(code) {
		setDef(defaultBinding)
		code = defaultAnonFuncRe.ReplaceAllString(code, "var "+defaultBinding+" = $1")
	}
	if m := defaultNamedClsRe.FindStringSubmatch(code); m != nil {
		setDef(m[1])
		code = defaultNamedClsRe.ReplaceAllString(code, "class $1")
	}
	if defaultAnonClsRe.MatchString(code) {
		setDef(defaultBinding)
		code = defaultAnonClsRe.ReplaceAllString(code, "var "+defaultBinding+" = class")
	}
	if m := defaultIdentRe.FindStringSubmatch(code); m != nil {
		setDef(m[1])
		code = defaultIdentRe.ReplaceAllString(code, "")
	}
	if defaultExprRe.MatchString(code) {
		setDef(defaultBinding)
		code = defaultExprRe.ReplaceAllString(code, "var "+defaultBinding+" = ")
	}

	code = exportDeclRe.ReplaceAllString(code, "$1")
	return head + code, def
}

// DetectComponent returns the binding to publish. A capitalized default
// binding wins; otherwise the earliest capitalized top-level function or
// variable declaration of the entry module; otherwise the default binding,
// if any.
func DetectComponent(code, def string) string {
	if isCapitalized(def) {
		return def
	}
	code = code[entryStart(code):]

	name, pos := "", -1
	for _, re := range []*regexp.Regexp{componentFuncRe, componentVarRe} {
		if loc := re.FindStringSubmatchIndex(code); loc != nil && (pos < 0 || loc[0] < pos) {
			name, pos = code[loc[2]:loc[3]], loc[0]
		}
	}
	if name != "" {
		return name
	}
	return def
}

// Expose strips export syntax from code and appends a statement publishing
// the detected component on globalThis. Capitalized components are published
// under their own name and "default"; other default bindings only under
// "default". Code without a candidate is returned stripped but unchanged
// otherwise.
func Expose(code string) (string, string) {
	stripped, def := StripExports(code)
	name := DetectComponent(stripped, def)
	if name == "" {
		return stripped, ""
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(stripped, "\n"))
	fmt.Fprintf(&b, "\nif (typeof %s !== \"undefined\") {\n", name)
	if isCapitalized(name) {
		fmt.Fprintf(&b, "  globalThis.%s = %s;\n", name, name)
	}
	fmt.Fprintf(&b, "  globalThis[\"default\"] = %s;\n}\n", name)
	return b.String(), name
}

func isCapitalized(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
