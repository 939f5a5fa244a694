// Package subscription resolves a named configuration, fetches the
// converted document from its backend and applies the proxy chain rewrite.
//
// A request flows through three stages:
//
//   - Resolver: finds the configuration whose name matches exactly
//   - Fetcher: builds the backend URL and issues one GET, without retries
//   - Rewrite: adds a detour to every outbound when a proxy tag is set
//
// Pipeline runs the stages in order and attaches the request URL and
// configuration to fetch and rewrite failures so callers can report them.
package subscription
