package module

import (
	"path"
	"strings"
)

// EntryName is the reserved specifier that names the user's root module.
const EntryName = "<entry>"

// EntryAddress is the fixed virtual address of the root module.
const EntryAddress Address = "livebundle:entry"

// Address uniquely identifies a loadable unit. Remote addresses are
// fully-qualified URLs; the entry address and stub addresses are not.
type Address string

// String returns the address as a plain string.
func (a Address) String() string { return string(a) }

// Namespace routes an address to its loading strategy.
type Namespace string

const (
	NamespaceEntry  Namespace = "entry"
	NamespaceRemote Namespace = "remote"
	NamespaceStub   Namespace = "stub"
)

// Valid reports whether n is one of the known namespaces.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceEntry, NamespaceRemote, NamespaceStub:
		return true
	}
	return false
}

// Resolution is the output of resolving one import specifier.
type Resolution struct {
	Address   Address   `json:"address"`
	Namespace Namespace `json:"namespace"`
}

// Context describes the importing module during resolution.
// Base is the importer's resolution base: the directory URL that relative
// specifiers found in the importer are resolved against. It is empty for the
// entry module.
type Context struct {
	Address   Address
	Namespace Namespace
	Base      string
}

// EntryContext is the resolution context of imports found in the root module.
var EntryContext = Context{Address: EntryAddress, Namespace: NamespaceEntry}

// Record is the result of loading one address.
type Record struct {
	Content string `json:"content"`
	Kind    Kind   `json:"kind"`
	Base    string `json:"base"`
}

// Kind classifies module content for the transform step.
type Kind string

const (
	KindScript      Kind = "script"
	KindTypedScript Kind = "typed-script"
	KindJSX         Kind = "jsx"
	KindTypedJSX    Kind = "typed-jsx"
	KindStylesheet  Kind = "stylesheet"
	KindJSON        Kind = "json"
	KindBinary      Kind = "binary-asset"
)

var kindsByExt = map[string]Kind{
	".js":    KindScript,
	".mjs":   KindScript,
	".cjs":   KindScript,
	".ts":    KindTypedScript,
	".mts":   KindTypedScript,
	".cts":   KindTypedScript,
	".jsx":   KindJSX,
	".tsx":   KindTypedJSX,
	".css":   KindStylesheet,
	".json":  KindJSON,
	".png":   KindBinary,
	".jpg":   KindBinary,
	".jpeg":  KindBinary,
	".gif":   KindBinary,
	".webp":  KindBinary,
	".avif":  KindBinary,
	".ico":   KindBinary,
	".svg":   KindBinary,
	".woff":  KindBinary,
	".woff2": KindBinary,
	".ttf":   KindBinary,
	".otf":   KindBinary,
	".eot":   KindBinary,
	".wasm":  KindBinary,
}

// KindForPath classifies p by its file extension. The boolean is false when
// the extension is not in the table, in which case KindScript is returned.
func KindForPath(p string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(p))
	if k, ok := kindsByExt[ext]; ok {
		return k, true
	}
	return KindScript, false
}
