// Package store keeps the dashboard's view of the resource manager and
// publishes every change to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining snapshot and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: JSON representation of the current RM state
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers miss updates rather than block discovery).
package store
