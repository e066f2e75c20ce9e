// Package domain holds the core model types, store interfaces, and error
// taxonomy of the ranking and voting engine. It has no dependencies on
// transport or storage packages; those implement the interfaces defined here.
package domain
