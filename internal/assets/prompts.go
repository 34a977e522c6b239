// Package assets provides the prompt templates sent to the remote models.
//
// Prompts are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

// StyleAnalysisPrompt asks the model to describe only the visual style of a
// reference image, never its subject matter.
//
//go:embed prompts/style-analysis.txt
var StyleAnalysisPrompt string

//go:embed prompts/illustration.txt
var illustrationTemplate string

// template.Must panics on malformed templates, catching errors at startup.
var illustrationTmpl = template.Must(template.New("illustration").Parse(illustrationTemplate))

// CharacterRef is one entry of the character reference sheet.
type CharacterRef struct {
	Name        string
	Description string
}

// IllustrationData holds the dynamic parts of the illustration prompt.
type IllustrationData struct {
	Style      string
	Characters []CharacterRef
	Scene      string
}

// RenderIllustrationPrompt renders the illustration prompt.
func RenderIllustrationPrompt(data IllustrationData) (string, error) {
	var buf bytes.Buffer
	if err := illustrationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render illustration prompt: %w", err)
	}
	return buf.String(), nil
}
