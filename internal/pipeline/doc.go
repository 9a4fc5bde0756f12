// Package pipeline turns a question into a rendered video. Each attempt asks
// the language model for scene code, patches it, writes it into a prepared
// workspace, renders it and looks for the resulting video. Failed attempts
// are retried up to a fixed bound.
package pipeline
