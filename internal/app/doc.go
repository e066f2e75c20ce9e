// Package app is the application layer, the only component that references
// multiple domain components. It orchestrates the voting, queue, boost and
// leaderboard use cases for the HTTP and WebSocket surfaces.
package app
