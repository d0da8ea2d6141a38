/*
Package ports defines the driven ports (interfaces) of the arbor runtime.

These interfaces decouple the interpreter and the editor from the host that
embeds them: rendering, audio, minigames and player state live behind the
collaborator interfaces, and graphs are persisted through GraphStore.

# Key Interfaces

  - DialogueSurface, ChoiceRegistry, Environment, AudioPlayer, MinigameLauncher:
    presentation collaborators called by the node handlers.
  - Inventory, Traits, Flags, IntFlags, Relationships: player state consulted
    by conditions and changed by modifiers.
  - GraphLoader / GraphStore: named graph persistence.
  - DistributedLocker: distributed locking for concurrent session access.
*/
package ports
