// Package llm contains adapters for invoking large language model providers.
// It abstracts away provider-specific APIs behind a single completion
// contract so the decision layer never depends on a particular backend.
package llm
