// Package render runs the Manim command line renderer as a subprocess and
// locates the video it produced by Manim's output directory convention.
package render
