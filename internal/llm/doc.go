// Package llm abstracts the model API behind a small Client interface.
// AnthropicClient is the production implementation; MockClient serves tests
// with canned responses.
package llm
