// Package ai implements the translation relay: at each answer-phase
// boundary the collected player messages are sent to a language model and
// the reply, if any, is returned to the room as chat.
package ai

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parlorgame/parlor/internal/game"
)

// Prompts holds the model-facing text. Loaded from YAML so wording can be
// tuned without a rebuild.
type Prompts struct {
	// System frames the model's role for every request.
	System string `yaml:"system"`
	// BatchIntro precedes the numbered list of player messages.
	BatchIntro string `yaml:"batch_intro"`
}

// DefaultPrompts returns the built-in prompt text used when no prompt file
// is configured.
func DefaultPrompts() Prompts {
	return Prompts{
		System:     "You are a friendly game companion in a party game. Players have each written a short message. Respond with a playful summary or translation of their messages in 1-2 sentences.",
		BatchIntro: "Here are the messages from this round:",
	}
}

// LoadPrompts reads a prompt file, falling back to the defaults for any
// field the file leaves empty.
//
// Postcondition: Returns fully-populated prompts or a non-nil error; a
// missing file is an error, an incomplete file is not.
func LoadPrompts(path string) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("reading prompt file %s: %w", path, err)
	}
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("parsing prompt file %s: %w", path, err)
	}
	defaults := DefaultPrompts()
	if p.System == "" {
		p.System = defaults.System
	}
	if p.BatchIntro == "" {
		p.BatchIntro = defaults.BatchIntro
	}
	return p, nil
}

// BuildBatchPrompt renders one round's messages as the user turn sent to
// the model. Silent players are included with their placeholder so the
// model sees the whole table.
func (p Prompts) BuildBatchPrompt(batch []game.BatchEntry) string {
	var b strings.Builder
	b.WriteString(p.BatchIntro)
	b.WriteString("\n")
	for i, entry := range batch {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, entry.Nickname, entry.Text)
	}
	return b.String()
}
