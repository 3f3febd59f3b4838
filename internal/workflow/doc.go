// Package workflow holds the pure state machines behind class enrollment,
// assignment submission and timed exam attempts.
//
// Every function takes the current entity, the command arguments and the
// evaluation time, and returns an updated copy plus the effects the caller
// must execute once the copy has been persisted. Nothing here performs I/O,
// reads the wall clock or keeps state between calls.
package workflow
