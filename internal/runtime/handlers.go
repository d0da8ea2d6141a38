package runtime

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// execute dispatches a node to the handler of its kind.
func (i *Interpreter) execute(ctx context.Context, p *pass, n *domain.Node) {
	if i.hooks.OnNodeExecute != nil {
		i.hooks.OnNodeExecute(ctx, &domain.NodeEvent{
			EventBase: i.event(domain.EventNodeExecute),
			NodeID:    n.ID,
			NodeKind:  n.Kind(),
		})
	}

	switch d := n.Data.(type) {
	case *domain.StartData:
		// Anchor only.
	case *domain.TextData:
		i.playText(ctx, p, n, d)
	case *domain.ChoiceData:
		i.resetChoices(p)
		i.offerChoice(p, n, d)
	case *domain.ConditionData:
		if i.conditionMet(p, n, d) {
			i.cascade(ctx, p, i.connected(n, domain.AllPorts))
		}
	case *domain.ModifierData:
		i.applyModifier(n, d)
		i.cascade(ctx, p, i.connected(n, domain.PortOutput))
	case *domain.SceneData:
		i.showScene(ctx, n, d.Scene, d.Preset)
		i.cascade(ctx, p, i.connected(n, domain.PortOutput))
	case *domain.CharacterData:
		i.showCharacters(ctx, n, d)
		i.cascade(ctx, p, i.connected(n, domain.PortOutput))
	case *domain.AudioData:
		i.playAudio(ctx, n, d)
	case *domain.DelayData:
		i.delay(ctx, n, d)
		i.cascade(ctx, p, i.connected(n, domain.PortOutput))
	case *domain.MinigameData:
		i.startMinigame(ctx, n, d)
	default:
		i.logger.Error("unsupported node type", "node_id", n.ID, "kind", n.Kind())
	}
}

func (i *Interpreter) missing(n *domain.Node, collaborator string) {
	i.logger.Warn("collaborator missing, skipping", "node_id", n.ID, "kind", n.Kind(), "collaborator", collaborator)
}

func (i *Interpreter) failed(n *domain.Node, op string, err error) {
	i.logger.Warn("collaborator call failed", "node_id", n.ID, "kind", n.Kind(), "op", op, "err", err)
}

// playText displays the line, then registers the choices linked from it
// directly or through one met condition.
func (i *Interpreter) playText(ctx context.Context, p *pass, n *domain.Node, d *domain.TextData) {
	if i.collab.Dialogue == nil {
		i.missing(n, "dialogue")
	} else if err := i.collab.Dialogue.PlayText(ctx, domain.Line{Speaker: d.Speaker, Text: d.Text}); err != nil {
		i.failed(n, "play_text", err)
	}

	i.resetChoices(p)
	for _, m := range i.connected(n, domain.AllPorts) {
		switch md := m.Data.(type) {
		case *domain.ChoiceData:
			i.offerChoice(p, m, md)
		case *domain.ConditionData:
			if !i.conditionMet(p, m, md) {
				continue
			}
			for _, k := range i.connected(m, domain.AllPorts) {
				if kd, ok := k.Data.(*domain.ChoiceData); ok {
					i.offerChoice(p, k, kd)
				}
			}
		}
	}
}

// resetChoices clears the registry the first time a pass touches it, so
// choices registered earlier in the same pass stay offered.
func (i *Interpreter) resetChoices(p *pass) {
	if p.choicesReset {
		return
	}
	p.choicesReset = true
	i.clearChoices()
}

func (i *Interpreter) clearChoices() {
	i.choiceGen++
	i.choices = nil
	if i.collab.Choices != nil {
		i.collab.Choices.ClearChoices()
	}
}

// offerChoice registers every option of a choice node.
func (i *Interpreter) offerChoice(p *pass, n *domain.Node, d *domain.ChoiceData) {
	if i.collab.Choices == nil {
		i.missing(n, "choices")
		return
	}
	gen := i.choiceGen
	for idx, opt := range d.Options {
		port := opt.PortName(idx)
		i.choices = append(i.choices, opt.Label)
		i.collab.Choices.AddChoice(opt.Label, func(ctx context.Context) {
			i.resume(ctx, func(ctx context.Context) {
				i.pick(ctx, gen, n, opt.Label, port)
			})
		})
	}
	if len(d.Options) > 0 {
		p.offered = true
	}
}

func (i *Interpreter) showChoices(ctx context.Context) {
	if i.collab.Choices == nil || len(i.choices) == 0 {
		return
	}
	if err := i.collab.Choices.ShowChoices(ctx); err != nil {
		i.logger.Warn("collaborator call failed", "node_id", i.current, "op", "show_choices", "err", err)
	}
}

// pick continues the story from the port of a picked option.
func (i *Interpreter) pick(ctx context.Context, gen int, n *domain.Node, label, port string) {
	if gen != i.choiceGen {
		i.logger.Debug("stale choice ignored", "node_id", n.ID, "label", label)
		return
	}
	i.clearChoices()
	if i.hooks.OnChoicePicked != nil {
		i.hooks.OnChoicePicked(ctx, &domain.ChoiceEvent{
			EventBase: i.event(domain.EventChoicePicked),
			NodeID:    n.ID,
			Label:     label,
			Port:      port,
		})
	}
	i.logger.Debug("choice picked", "node_id", n.ID, "port", port)
	i.runChoicePass(ctx, i.connected(n, port))
}

func (i *Interpreter) applyModifier(n *domain.Node, d *domain.ModifierData) {
	c := i.collab
	if len(d.Relationships) > 0 {
		if c.Relationships == nil {
			i.missing(n, "relationships")
		} else {
			for _, r := range d.Relationships {
				c.Relationships.ModifyRelationship(r.Character, r.Delta)
			}
		}
	}
	if len(d.AddTraits) > 0 {
		if c.Traits == nil {
			i.missing(n, "traits")
		} else {
			for _, t := range d.AddTraits {
				c.Traits.AddTrait(t)
			}
		}
	}
	if len(d.AddItems) > 0 || len(d.RemoveItems) > 0 {
		if c.Inventory == nil {
			i.missing(n, "inventory")
		} else {
			for _, item := range d.AddItems {
				c.Inventory.AddItem(item)
			}
			for _, item := range d.RemoveItems {
				c.Inventory.RemoveItem(item)
			}
		}
	}
	if len(d.SetFlags) > 0 {
		if c.Flags == nil {
			i.missing(n, "flags")
		} else {
			for _, f := range d.SetFlags {
				c.Flags.SetFlag(f.Name, f.Value)
			}
		}
	}
	if len(d.IntFlags) > 0 {
		if c.IntFlags == nil {
			i.missing(n, "int_flags")
			return
		}
		for _, change := range d.IntFlags {
			v, err := change.Apply(c.IntFlags.GetInt(change.Name))
			if err != nil {
				i.logger.Warn("invalid int flag change", "node_id", n.ID, "err", err)
				continue
			}
			c.IntFlags.SetInt(change.Name, v)
		}
	}
}

func (i *Interpreter) showScene(ctx context.Context, n *domain.Node, scene domain.AssetRef, preset string) {
	if i.collab.Environment == nil {
		i.missing(n, "environment")
		return
	}
	if err := i.collab.Environment.ShowScene(ctx, scene, preset); err != nil {
		i.failed(n, "show_scene", err)
	}
}

func (i *Interpreter) showCharacters(ctx context.Context, n *domain.Node, d *domain.CharacterData) {
	env := i.collab.Environment
	if env == nil {
		i.missing(n, "environment")
		return
	}
	for idx, e := range d.Entries {
		p, ok := i.placement(n, idx, e)
		if !ok {
			continue
		}
		if err := env.ShowCharacter(ctx, p); err != nil {
			i.failed(n, "show_character", err)
		}
	}
}

// placement resolves the sprite and anchor of one entry. Unresolvable
// references skip the entry.
func (i *Interpreter) placement(n *domain.Node, idx int, e domain.CharacterEntry) (domain.CharacterPlacement, bool) {
	p := domain.CharacterPlacement{
		Character:     e.Character,
		Tint:          e.Tint,
		SortLayer:     e.SortLayer,
		Scale:         e.Scale,
		ParallaxLayer: e.ParallaxLayer,
	}
	if p.Tint.IsZero() {
		p.Tint = domain.White
	}
	if p.Scale == 0 {
		p.Scale = 1
	}

	if e.Emotion != "" {
		if i.collab.Characters == nil {
			i.missing(n, "characters")
			return p, false
		}
		sprite, ok := i.collab.Characters.Emotion(e.Character, e.Emotion)
		if !ok {
			i.logger.Warn("unknown emotion, skipping entry", "node_id", n.ID, "entry", idx, "character", e.Character.Path, "emotion", e.Emotion)
			return p, false
		}
		p.Emotion = sprite
	}

	var anchor domain.Vec2
	if e.Position != "" {
		pos, ok := i.collab.Environment.TryGetCharacterPosition(e.Position)
		if !ok {
			i.logger.Warn("unknown position, skipping entry", "node_id", n.ID, "entry", idx, "position", e.Position)
			return p, false
		}
		anchor = pos
	}
	p.Position = anchor.Add(e.Offset)
	return p, true
}

func (i *Interpreter) playAudio(ctx context.Context, n *domain.Node, d *domain.AudioData) {
	a := i.collab.Audio
	if a == nil {
		i.missing(n, "audio")
		return
	}
	var err error
	switch d.Channel {
	case domain.AudioMusic:
		err = a.SetMusicClip(ctx, d.Clip, d.Volume)
	case domain.AudioAmbience:
		err = a.SetAmbienceClip(ctx, d.Clip, d.Volume)
	case domain.AudioSFX:
		err = a.PlaySfx(ctx, d.Clip, d.Volume)
	default:
		i.logger.Warn("unknown audio channel", "node_id", n.ID, "channel", d.Channel)
		return
	}
	if err != nil {
		i.failed(n, "play_audio", err)
	}
}

func (i *Interpreter) delay(ctx context.Context, n *domain.Node, d *domain.DelayData) {
	i.logger.Debug("delay", "node_id", n.ID, "duration", d.Duration)
	if i.hooks.OnDelay != nil {
		i.hooks.OnDelay(ctx, &domain.DelayEvent{
			EventBase: i.event(domain.EventDelay),
			NodeID:    n.ID,
			Duration:  d.Duration,
		})
	}
	if i.wait == nil {
		return
	}
	if err := i.wait(ctx, d.Duration); err != nil {
		i.failed(n, "delay", err)
	}
}

// startMinigame launches the minigame. Its branch ends here; the completion
// callback resumes the story from onSuccess or onFail.
func (i *Interpreter) startMinigame(ctx context.Context, n *domain.Node, d *domain.MinigameData) {
	if !d.Scene.IsZero() {
		i.showScene(ctx, n, d.Scene, d.Preset)
	}
	if i.collab.Minigames == nil {
		i.missing(n, "minigames")
		return
	}

	resumeCtx := context.WithoutCancel(ctx)
	done := false
	setup := func(game ports.MinigameInstance) {
		for _, f := range d.Fighters {
			game.AddFighter(f)
		}
	}
	onComplete := func(success bool) {
		if done {
			i.logger.Warn("minigame completed twice", "node_id", n.ID)
			return
		}
		done = true
		i.resume(resumeCtx, func(ctx context.Context) {
			i.completeMinigame(ctx, n, success)
		})
	}
	if err := i.collab.Minigames.StartMinigame(ctx, d.Prefab, setup, onComplete); err != nil {
		i.failed(n, "start_minigame", err)
	}
}

func (i *Interpreter) completeMinigame(ctx context.Context, n *domain.Node, success bool) {
	port := domain.PortFail
	if success {
		port = domain.PortSuccess
	}
	if i.hooks.OnMinigameComplete != nil {
		i.hooks.OnMinigameComplete(ctx, &domain.MinigameEvent{
			EventBase: i.event(domain.EventMinigameComplete),
			NodeID:    n.ID,
			Success:   success,
		})
	}
	i.logger.Debug("minigame complete", "node_id", n.ID, "success", success)
	i.runPass(ctx, i.connected(n, port))
}
