// Package patch rewrites generated scene source before it is rendered. It
// applies an ordered list of literal and regular-expression substitutions
// that repair LaTeX escapes and spacing mistakes language models commonly make.
package patch
