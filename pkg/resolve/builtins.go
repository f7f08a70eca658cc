package resolve

import "strings"

// builtins lists platform modules that cannot run in the preview host.
// Filesystem, process, crypto and network primitives plus the modules that
// only make sense next to them.
var builtins = map[string]bool{
	"assert":         true,
	"async_hooks":    true,
	"buffer":         true,
	"child_process":  true,
	"cluster":        true,
	"constants":      true,
	"crypto":         true,
	"dgram":          true,
	"dns":            true,
	"domain":         true,
	"events":         true,
	"fs":             true,
	"http":           true,
	"http2":          true,
	"https":          true,
	"inspector":      true,
	"module":         true,
	"net":            true,
	"os":             true,
	"path":           true,
	"perf_hooks":     true,
	"process":        true,
	"querystring":    true,
	"readline":       true,
	"repl":           true,
	"stream":         true,
	"string_decoder": true,
	"sys":            true,
	"timers":         true,
	"tls":            true,
	"tty":            true,
	"url":            true,
	"util":           true,
	"v8":             true,
	"vm":             true,
	"worker_threads": true,
	"zlib":           true,
}

// IsBuiltin reports whether name is a platform built-in module.
// Both bare ("fs") and prefixed ("node:fs") forms are recognized, as are
// subpaths such as "fs/promises".
func IsBuiltin(name string) bool {
	if rest, ok := strings.CutPrefix(name, "node:"); ok {
		name = rest
	}
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	return builtins[name]
}
