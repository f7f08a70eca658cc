// Package resolve maps import specifiers to module addresses.
//
// Resolution is a pure function of the specifier and the importing module's
// [module.Context]. Rules are evaluated in order and the first match wins:
//
//  1. The reserved entry name resolves to the virtual entry module.
//  2. Relative specifiers ("./", "../") are joined onto the importer's
//     resolution base and normalized.
//  3. Platform built-ins ("fs", "node:crypto", "fs/promises", ...) resolve to
//     the stub namespace and are never fetched.
//  4. Anything else is a bare package specifier and is appended verbatim to
//     the registry base URL.
//
// Resolution never fails: an unknown package still produces a valid remote
// address and the failure is left to the loader.
package resolve
