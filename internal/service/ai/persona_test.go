package ai

import "testing"

func TestLookupPersona(t *testing.T) {
	for _, tag := range []string{"jitesh", "Jitesh", "  PRITAM "} {
		p, err := LookupPersona(tag)
		if err != nil {
			t.Fatalf("lookup %q: %v", tag, err)
		}
		if p.SystemPrompt == "" || p.DisplayName == "" {
			t.Fatalf("persona %q missing prompt or display name", tag)
		}
	}

	if _, err := LookupPersona("socrates"); err == nil {
		t.Fatalf("expected error for unknown persona")
	}
}

func TestPersonaTypes(t *testing.T) {
	types := PersonaTypes()
	if len(types) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(types))
	}
	seen := map[string]bool{}
	for _, tag := range types {
		seen[tag] = true
	}
	if !seen["jitesh"] || !seen["pritam"] {
		t.Fatalf("unexpected persona tags: %v", types)
	}
}
