// Package loader turns resolved module addresses into module records.
//
// # Algorithm
//
// For every address the engine asks for, [Loader.Load]:
//
//  1. answers stub addresses with an empty CommonJS module, without network
//  2. returns the cached record when the remote fetch cache has one
//  3. fetches the address, classifies its content by extension, derives the
//     resolution base from the final (post-redirect) URL and caches the record
//  4. on failure, retries a registry address once with the "module" query
//     modifier (selecting the ESM build of the package); a success is cached
//     under the original address
//  5. otherwise substitutes a degraded module that warns at runtime and
//     exports an empty default
//
// Network failures never surface as errors: one unreachable dependency must
// not block previewing the rest of the user's code. Concurrent loads of the
// same address share one fetch.
package loader
