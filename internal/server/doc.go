// Package server is the HTTP surface: echo routes, request decoding, and the
// mapping from the domain error taxonomy onto status codes. Handlers stay
// thin; use-case logic lives in internal/app.
package server
