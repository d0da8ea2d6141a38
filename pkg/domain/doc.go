/*
Package domain contains the core story graph model for the arbor runtime.

A story is a directed graph of typed nodes joined by links. Nodes are owned by
an id-indexed arena (Graph) and links reference nodes only by id, so graphs may
contain cycles and survive serialization round-trips without losing identity.

This package is kept pure and free of I/O, following the same hexagonal split
as the rest of the module: loaders and stores live in pkg/adapters, the
interpreter lives in internal/runtime.

# Key Entities

  - Node: a typed unit of authored behavior. Its payload (NodeData) is a closed
    set of variants, one per node kind.
  - Link: a directed connection from one output port of a node to the input of
    another node.
  - Group: an organizational container of node ids with no execution semantics.
  - Graph: the arena holding nodes, links (in declaration order) and groups.
*/
package domain
