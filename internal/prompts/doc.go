// Package prompts contains the LLM prompt templates used by the
// airspace pipeline.
//
// Prompt text is Go code rather than config files because it is program
// logic: the ops template defines the section contract the traveler
// stage parses, so changing it is a protocol change. Templates use
// fmt.Sprintf interpolation and are validated by tests.
//
// Convention: each prompt category gets its own file (ops.go,
// traveler.go) with exported functions that accept the dynamic parts
// and return the fully interpolated prompt strings.
package prompts
