package module

import "testing"

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path  string
		want  Kind
		known bool
	}{
		{"/react@18.2.0/index.js", KindScript, true},
		{"/pkg/dist/index.mjs", KindScript, true},
		{"/pkg/src/main.ts", KindTypedScript, true},
		{"/pkg/Button.jsx", KindJSX, true},
		{"/pkg/Button.TSX", KindTypedJSX, true},
		{"/pkg/styles.css", KindStylesheet, true},
		{"/pkg/package.json", KindJSON, true},
		{"/pkg/logo.png", KindBinary, true},
		{"/pkg/font.woff2", KindBinary, true},
		{"/react", KindScript, false},
		{"/pkg/README.md", KindScript, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, known := KindForPath(tt.path)
			if got != tt.want || known != tt.known {
				t.Errorf("KindForPath(%q) = %s, %v; want %s, %v", tt.path, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestNamespaceValid(t *testing.T) {
	for _, ns := range []Namespace{NamespaceEntry, NamespaceRemote, NamespaceStub} {
		if !ns.Valid() {
			t.Errorf("%s should be valid", ns)
		}
	}
	if Namespace("file").Valid() {
		t.Error("file namespace should not be valid")
	}
}
