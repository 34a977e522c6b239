package assets

import (
	"strings"
	"testing"
)

func TestStyleAnalysisPromptExcludesSubject(t *testing.T) {
	if !strings.Contains(StyleAnalysisPrompt, "IGNORE what is depicted") {
		t.Error("style analysis prompt must tell the model to ignore subject matter")
	}
}

func TestRenderIllustrationPrompt(t *testing.T) {
	prompt, err := RenderIllustrationPrompt(IllustrationData{
		Style: "watercolor, pastel\n\n---\n\nbold ink lines",
		Characters: []CharacterRef{
			{Name: "Leo", Description: "a small lion cub with a red scarf"},
			{Name: "Willow", Description: "a barn owl wearing round glasses"},
		},
		Scene: `a fox in a "forest" & <river>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ABSOLUTE RULE, NON-NEGOTIABLE",
		"watercolor, pastel\n\n---\n\nbold ink lines",
		"- Leo: a small lion cub with a red scarf\n",
		"- Willow: a barn owl wearing round glasses\n",
		`"a fox in a "forest" & <river>"`,
		"watermarks",
		"looks the same on every page",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n---\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "- Leo") > strings.Index(prompt, "- Willow") {
		t.Error("characters must keep their order")
	}
}

func TestRenderIllustrationPromptNoCharacters(t *testing.T) {
	prompt, err := RenderIllustrationPrompt(IllustrationData{Style: "ink", Scene: "a quiet pond"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "No specific characters are defined for this scene.") {
		t.Errorf("expected placeholder line, got:\n%s", prompt)
	}
}
