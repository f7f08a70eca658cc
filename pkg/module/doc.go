// Package module defines the data model shared by the resolver, the loader,
// the cache and the bundle engine.
//
// # Addresses and Namespaces
//
// Every loadable unit is identified by an [Address] and tagged with a
// [Namespace] that decides how it is loaded:
//
//   - [NamespaceEntry]: the virtual root module holding the user's source
//   - [NamespaceRemote]: a file fetched from the package registry CDN
//   - [NamespaceStub]: a placeholder that is never fetched (platform built-ins)
//
// # Records
//
// A [Record] is what a load produces: the module content, its [Kind] and the
// resolution base used for relative imports found inside it. Records are the
// unit stored in the remote fetch cache.
package module
