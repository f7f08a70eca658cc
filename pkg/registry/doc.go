// Package registry provides the HTTP client used to fetch module files from
// the package registry CDN.
//
// Every request is a plain GET bounded by its own timeout (15 seconds by
// default). Failures are reported as structured errors from pkg/errors:
//
//   - NOT_FOUND for 404/410 responses
//   - TIMEOUT when the per-request deadline expires
//   - NETWORK_ERROR for transport failures and other non-2xx responses
//
// The client follows redirects and reports the final URL, which the loader
// uses as the resolution base for relative imports inside the fetched file.
package registry
