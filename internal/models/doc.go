// Package models lists the models a language model backend offers for the
// configured API key, grouped so scene generation candidates stand out.
package models
