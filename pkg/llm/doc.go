// Package llm wraps the hosted language-model APIs behind a single Provider
// interface. Calls are synchronous and never retried here; callers decide how
// a failure is surfaced.
package llm
