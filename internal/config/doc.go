// Package config loads runtime configuration from the environment, with a
// .env file honored in development.
package config
