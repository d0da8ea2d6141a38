// Package loam reads graphs authored as markdown, one document per node,
// through the Loam document repository.
//
// A graph is a directory: `inn/hello.md` is node "hello" of graph "inn".
// Documents at the repository root belong to DefaultGraph. The frontmatter
// carries the node type, position, links and properties; the body of a text
// node is its line.
//
//	---
//	type: text
//	speaker: Keeper
//	position: {x: 150, y: 100}
//	to: ask
//	groups: [inn]
//	---
//	Welcome.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/loam"
)

// DefaultGraph names the graph made of root-level documents.
const DefaultGraph = "main"

// Loader adapts the Loam library to the ports.GraphLoader interface.
// It is read-only: graphs are edited as files.
type Loader struct {
	Repo *loam.TypedRepository[NodeMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[NodeMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

type nodeDoc struct {
	path    string
	meta    NodeMetadata
	content string
}

// documents groups every repository document by graph name.
func (l *Loader) documents(ctx context.Context) (map[string][]nodeDoc, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	graphs := make(map[string][]nodeDoc)
	for _, doc := range docs {
		path := trimExtension(doc.ID)
		graph := DefaultGraph
		if dir, _, ok := strings.Cut(path, "/"); ok {
			graph = dir
		}
		graphs[graph] = append(graphs[graph], nodeDoc{path: doc.ID, meta: doc.Data, content: doc.Content})
	}
	return graphs, nil
}

// List returns the graph names found in the repository, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	graphs, err := l.documents(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(graphs))
	for name := range graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load assembles the graph stored under name from its node documents.
// Nodes are ordered by their `order` field, then by id.
func (l *Loader) Load(ctx context.Context, name string) (*domain.Graph, error) {
	graphs, err := l.documents(ctx)
	if err != nil {
		return nil, err
	}
	docs, ok := graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}

	type entry struct {
		id  string
		doc nodeDoc
	}
	seen := make(map[string]string, len(docs))
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		id := doc.meta.ID
		if id == "" {
			id = filepath.Base(trimExtension(doc.path))
		}
		// Collision Detection
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.path)
		}
		seen[id] = doc.path
		entries = append(entries, entry{id: id, doc: doc})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].doc.meta.Order != entries[j].doc.meta.Order {
			return entries[i].doc.meta.Order < entries[j].doc.meta.Order
		}
		return entries[i].id < entries[j].id
	})

	doc := &codec.Document{Version: codec.SchemaVersion}
	groupIndex := make(map[string]int)
	for _, e := range entries {
		if err := l.fillContent(ctx, &e.doc); err != nil {
			return nil, err
		}
		rec, err := buildRecord(e.id, e.doc)
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", name, err)
		}
		doc.Nodes = append(doc.Nodes, rec)
		doc.Links = append(doc.Links, buildLinks(e.id, e.doc.meta)...)

		for _, gid := range e.doc.meta.Groups {
			i, ok := groupIndex[gid]
			if !ok {
				i = len(doc.Groups)
				groupIndex[gid] = i
				doc.Groups = append(doc.Groups, domain.Group{ID: gid})
			}
			doc.Groups[i].Nodes = append(doc.Groups[i].Nodes, e.id)
		}
	}

	g, err := codec.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", name, err)
	}
	return g, nil
}

// fillContent fetches the body of a text document when the listing left it out.
func (l *Loader) fillContent(ctx context.Context, doc *nodeDoc) error {
	if doc.content != "" || (doc.meta.Type != "" && doc.meta.Type != string(domain.KindText)) {
		return nil
	}
	full, err := l.Repo.Get(ctx, doc.path)
	if err != nil {
		return fmt.Errorf("loam get failed for %s: %w", doc.path, err)
	}
	doc.content = full.Content
	return nil
}

func buildRecord(id string, doc nodeDoc) (codec.NodeRecord, error) {
	meta := doc.meta
	kind := domain.NodeKind(meta.Type)
	if kind == "" {
		kind = domain.KindText
	}

	props := make(map[string]any, len(meta.Properties)+2)
	for k, v := range meta.Properties {
		props[k] = normalizeValue(v)
	}
	if kind == domain.KindText {
		if _, ok := props["text"]; !ok {
			if body := strings.TrimSpace(doc.content); body != "" {
				props["text"] = body
			}
		}
		if _, ok := props["speaker"]; !ok && meta.Speaker != "" {
			props["speaker"] = meta.Speaker
		}
	}

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)

	rec := codec.NodeRecord{
		ID:       id,
		Type:     kind,
		Position: domain.Vec2{X: meta.Position.X, Y: meta.Position.Y},
	}
	for _, k := range names {
		rec.Properties = append(rec.Properties, codec.Property{Name: k, Value: props[k]})
	}

	// Fail on the document rather than deep inside graph assembly.
	if _, err := codec.DecodeProperties(kind, rec.Properties); err != nil {
		return rec, fmt.Errorf("%s: %w", doc.path, err)
	}
	return rec, nil
}

func buildLinks(id string, meta NodeMetadata) []domain.Link {
	links := make([]domain.Link, 0, len(meta.Links)+1)
	if meta.To != "" {
		links = append(links, domain.Link{From: id, To: trimExtension(meta.To)})
	}
	for _, ll := range meta.Links {
		link := domain.Link{From: id, PortName: ll.Port, To: trimExtension(ll.To)}
		switch {
		case ll.Index != nil:
			link.PortIndex = *ll.Index
		case ll.Port != "":
			// Name only: a negative index is unset.
			link.PortIndex = -1
		}
		links = append(links, link)
	}
	return links
}

// normalizeValue turns YAML's map[any]any into map[string]any so the
// property bag stays plain data.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = normalizeValue(sub)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalizeValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalizeValue(sub)
		}
		return out
	default:
		return v
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Loam debounces; one pending signal is enough for a reload.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}
