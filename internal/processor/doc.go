// Package processor wires the language model, renderer, narration service
// and run history into a pipeline and drives it for single questions and
// batch files. It is the main coordinator between the other components.
package processor
