package runtime

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// pass is the bookkeeping of one resolution pass.
type pass struct {
	// winner is the single text node settled by this pass, if any.
	winner *domain.Node
	// met caches condition results so each condition is evaluated once.
	met map[string]bool
	// executed prevents running a node twice and stops pass-through cycles.
	executed map[string]bool
	// choicesReset is set once the registry was cleared for this pass.
	choicesReset bool
	// offered is set when the pass registered at least one choice.
	offered bool
}

func newPass() *pass {
	return &pass{
		met:      make(map[string]bool),
		executed: make(map[string]bool),
	}
}

// runPass resolves and executes one batch of linked nodes, then settles the
// status and runs resumes delivered meanwhile.
func (i *Interpreter) runPass(ctx context.Context, nodes []*domain.Node) {
	i.resolve(ctx, func(p *pass) { i.cascade(ctx, p, nodes) })
}

// runChoicePass executes the links of a picked option. The text is selected
// among the directly linked nodes only; a linked condition runs like any other
// node and gates just its own links.
func (i *Interpreter) runChoicePass(ctx context.Context, nodes []*domain.Node) {
	i.resolve(ctx, func(p *pass) {
		for _, n := range nodes {
			if n.IsTextBearing() {
				p.winner = n
				i.setCurrent(ctx, n.ID)
				break
			}
		}
		for _, n := range nodes {
			if (n.IsTextBearing() && n != p.winner) || p.executed[n.ID] {
				continue
			}
			p.executed[n.ID] = true
			i.execute(ctx, p, n)
		}
	})
}

// resolve runs one pass, shows the choices it registered once the whole set
// has executed, then settles the status and runs resumes delivered meanwhile.
func (i *Interpreter) resolve(ctx context.Context, run func(p *pass)) {
	i.resolving = true
	i.status = domain.StatusResolving
	p := newPass()
	run(p)
	if p.offered {
		i.showChoices(ctx)
	}
	i.resolving = false
	i.settle()
	i.drain(ctx)
}

// cascade runs the two scans over a set of linked nodes and executes the
// assembled set. Nested levels share the pass, so a text node found deeper
// only wins when no level above settled one.
func (i *Interpreter) cascade(ctx context.Context, p *pass, linked []*domain.Node) {
	if len(linked) == 0 {
		return
	}
	if p.winner == nil {
		if w := i.selectText(p, linked); w != nil {
			p.winner = w
			i.setCurrent(ctx, w.ID)
		}
	}
	for _, n := range i.assemble(p, linked) {
		if p.executed[n.ID] {
			continue
		}
		p.executed[n.ID] = true
		i.execute(ctx, p, n)
	}
}

// selectText picks the text node to display: the first text node behind a
// met condition, else the first text node linked directly.
func (i *Interpreter) selectText(p *pass, linked []*domain.Node) *domain.Node {
	for _, n := range linked {
		cond, ok := n.Data.(*domain.ConditionData)
		if !ok || !i.conditionMet(p, n, cond) {
			continue
		}
		for _, m := range i.connected(n, domain.AllPorts) {
			if m.IsTextBearing() {
				return m
			}
		}
	}
	for _, n := range linked {
		if n.IsTextBearing() {
			return n
		}
	}
	return nil
}

// assemble builds the execution set in link order. Conditions contribute their
// linked nodes when met; text nodes other than the winner are dropped.
func (i *Interpreter) assemble(p *pass, linked []*domain.Node) []*domain.Node {
	var set []*domain.Node
	for _, n := range linked {
		switch d := n.Data.(type) {
		case *domain.ConditionData:
			if !i.conditionMet(p, n, d) {
				continue
			}
			for _, m := range i.connected(n, domain.AllPorts) {
				if m.IsTextBearing() && m != p.winner {
					continue
				}
				set = append(set, m)
			}
		default:
			if n.IsTextBearing() && n != p.winner {
				continue
			}
			set = append(set, n)
		}
	}
	return set
}

func (i *Interpreter) connected(n *domain.Node, port string) []*domain.Node {
	nodes, err := i.tracer.Connected(n.ID, port)
	if err != nil {
		i.logger.Error("failed to resolve links", "node_id", n.ID, "port", port, "err", err)
		return nil
	}
	return nodes
}

func (i *Interpreter) conditionMet(p *pass, n *domain.Node, d *domain.ConditionData) bool {
	if met, ok := p.met[n.ID]; ok {
		return met
	}
	met := i.evaluate(n, d)
	p.met[n.ID] = met
	return met
}
