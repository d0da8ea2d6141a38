/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing story graphs.

It allows developers to define branching stories using a type-safe, fluent builder pattern
instead of hand-writing JSON or YAML documents. This is particularly useful for unit testing,
examples and generated content.

Example usage:

	b := dsl.New()

	b.Start("start").Go("intro").Go("music")

	b.Add("music").Audio(domain.AudioMusic, "audio/theme", 0.8)

	b.Add("intro").
		Text("Welcome to the inn.").
		Speaker("Keeper").
		Go("ask")

	b.Add("ask").
		Choice("Stay", "Leave").
		Pick("Leave", "bye")

	b.Add("bye").Text("Safe travels.")

	graph, err := b.Build()
*/
package dsl
