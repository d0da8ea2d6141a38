/*
Package session runs live playthroughs for multi-client hosts.

A Manager keeps one interpreter and recording stage per session id and
serializes operations on each session with a reference-counted mutex,
optionally backed by a distributed lock so several replicas can share a
session id space.
*/
package session
