// Package completion defines the provider-agnostic text completion interface
// used by agents to phrase replies, plus a deterministic mock for tests.
// Concrete providers live in the openai and anthropic subpackages.
package completion
