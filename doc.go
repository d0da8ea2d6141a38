/*
Package arbor runs branching visual-novel stories authored as node graphs.

A story is a graph of typed nodes (start, text, choice, condition, modifier,
scene, character, audio, delay, minigame) joined by links from named output
ports. The interpreter walks the graph on behalf of a host: it shows lines,
offers choices, stages scenes and characters, plays audio and launches
minigames through collaborator interfaces the host implements, and rests on
the current text node until the host asks it to advance.

# Concept

The graph is plain data (pkg/domain) and never changes while it is played.
Everything with a side effect lives behind the ports in pkg/ports, so the
same story runs in a game engine, a console, an HTTP or MCP service, or a
test.
pkg/adapters/memory.Stage is a host that records every request and keeps an
in-memory inventory and flag store; it is what the console player and the
HTTP server drive.

Editors use pkg/editor, which applies every change to a graph as an
undoable command and copies node selections through a clipboard.

# Usage

	eng, err := arbor.New("", arbor.WithLoader(store))
	if err != nil {
		log.Fatal(err)
	}
	stage := memory.NewStage()
	play, err := eng.Start(ctx, "tavern", stage)
	if err != nil {
		log.Fatal(err)
	}
	for _, a := range stage.Drain() {
		fmt.Println(a.Type, a.Payload)
	}
	_ = play.Advance(ctx)

Graphs are authored in Go with pkg/dsl, as JSON or YAML documents
(pkg/codec, pkg/adapters/file), as one markdown file per node
(pkg/adapters/loam) or stored in Redis and SQLite.
*/
package arbor
