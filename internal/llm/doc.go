// Package llm requests scene source code from a hosted language model. It
// hides the vendor behind the Backend interface (Anthropic, OpenAI, Gemini),
// validates the returned source and retries generation a bounded number of
// times.
package llm
