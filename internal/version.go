package internal

// Version is the clarity release version, overridden at build time via -ldflags.
var Version = "0.3.1"
