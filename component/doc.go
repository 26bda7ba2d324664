// Package component defines the lifecycle contract shared by flowkit's
// long-running parts and a Registry that starts them in registration order
// and stops them in reverse.
package component
