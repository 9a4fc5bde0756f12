// Package scaffold prepares the working directory a scene is rendered in:
// it clears stale media and writes the helper Python modules generated
// scenes import.
package scaffold
