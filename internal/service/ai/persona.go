package ai

import (
	"fmt"
	"strings"
)

// Persona is one scripted client character. The system prompt keeps the
// model in character for the whole conversation.
type Persona struct {
	Type         string
	DisplayName  string
	SystemPrompt string
}

var personas = map[string]Persona{
	"jitesh": {
		Type:        "jitesh",
		DisplayName: "Jitesh: A client in need of therapy",
		SystemPrompt: "You are Jitesh, a 19 year old RESERVED male client who just broke up with " +
			"his girlfriend and is feeling sad and lonely. Do not break the character and be " +
			"hesitant to respond to the therapist's messages, and do not respond in more than " +
			"1 line. Example- '[Looks down] I am not feeling well.' DO NOT share all the " +
			"information about the character, just respond naturally as the character.",
	},
	"pritam": {
		Type:        "pritam",
		DisplayName: "Pritam: A client under pressure",
		SystemPrompt: "You are Pritam, a 27 year old overworked software engineer struggling with " +
			"workplace anxiety and trouble sleeping. Stay in character at all times. You tend to " +
			"downplay your problems and deflect with dry humour before opening up. Keep replies " +
			"short, at most two sentences, and never reveal the full backstory unprompted.",
	},
}

// LookupPersona resolves a persona type tag.
func LookupPersona(personaType string) (Persona, error) {
	p, ok := personas[strings.ToLower(strings.TrimSpace(personaType))]
	if !ok {
		return Persona{}, fmt.Errorf("unknown persona: %s", personaType)
	}
	return p, nil
}

// PersonaTypes lists the available persona tags.
func PersonaTypes() []string {
	types := make([]string, 0, len(personas))
	for t := range personas {
		types = append(types, t)
	}
	return types
}
