// Package server exposes video generation over HTTP for the web frontend.
// POST /video renders a question and streams the mp4 back; narration,
// health and Prometheus metrics are served alongside.
package server
