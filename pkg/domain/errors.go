package domain

import "errors"

// ErrNodeNotFound is returned when a node id is not part of the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node whose id already exists.
var ErrDuplicateNode = errors.New("duplicate node id")

// ErrStartExists is returned when a second start node is added.
var ErrStartExists = errors.New("graph already has a start node")

// ErrNoStartNode is returned when a graph has no start node.
var ErrNoStartNode = errors.New("graph has no start node")

// ErrStartProtected is returned when trying to remove the start node.
var ErrStartProtected = errors.New("start node cannot be removed")

// ErrInvalidLink is returned for links whose endpoints or port cannot be resolved.
var ErrInvalidLink = errors.New("invalid link")

// ErrDuplicateLink is returned when the same connection is added twice.
var ErrDuplicateLink = errors.New("duplicate link")

// ErrGroupNotFound is returned when a group id is not part of the graph.
var ErrGroupNotFound = errors.New("group not found")

// ErrUnknownKind is returned when decoding a node with an unknown type tag.
var ErrUnknownKind = errors.New("unknown node kind")

// ErrGraphNotFound is returned when a graph name cannot be found in a store.
var ErrGraphNotFound = errors.New("graph not found")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")
