// Package internal contains the implementation packages for doxstrux.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - token, tokenizer: the flat token stream and the goldmark adapter that produces it
//   - warehouse: single-pass dispatch, routing table, per-collector timeouts and caps
//   - collectors: links, images, headings, code blocks, tables, lists and raw HTML
//   - sections: heading-delimited section index with binary-search lookup
//   - validation: URL normalization and path checks shared by every consumer
//   - security: fail-closed HTML policy filter and CSP nonces
//   - renderer: templ-based HTML report of an extraction result
//   - fetch: rate-limited link checker with an in-memory or Redis cache
//   - audit: green-light gate, signed baselines, renderer discovery
//   - performance: corpus benchmarks and regression detection
//   - config, logging, errors, version, watcher: ambient infrastructure
//
// # Data Flow
//
// A document is tokenized once. The warehouse walks the tokens in order and
// hands each one to the collectors whose routing table entry matches its
// kind. Collectors read through a read-only token view and never see each
// other's state. Finalize collects every output into one Result, which the
// cmd package serializes or the renderer turns into HTML.
//
// # Security Considerations
//
//   - Every URL goes through validation.NormalizeURL before it is stored or fetched
//   - Raw HTML is dropped unless allowed, and allowed HTML is sanitized on finalize
//   - Collector output is capped and truncation is reported, never silent
//   - The audit gate refuses to pass with unregistered HTML renderers
package internal
