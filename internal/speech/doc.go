// Package speech synthesizes narration for rendered scenes.
//
// Providers (ElevenLabs, OpenAI, espeak-ng) turn text into an audio file.
// Service adds what the scene renderer needs on top: bookmark removal,
// request fingerprinting, a compressed disk cache and approximate word
// timings. Handler and Sidecar expose a Service over HTTP so the Python
// narration shim inside the render directory can reach it.
package speech
