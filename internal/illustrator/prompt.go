package illustrator

import "github.com/fpang/storybook-illustrator/internal/assets"

// BuildIllustrationPrompt renders the illustration prompt: the style guide as
// an absolute rule, one "name: description" line per character in order, and
// the scene text verbatim.
func BuildIllustrationPrompt(style string, characters []Character, scene string) (string, error) {
	refs := make([]assets.CharacterRef, 0, len(characters))
	for _, ch := range characters {
		refs = append(refs, assets.CharacterRef{Name: ch.Name, Description: ch.Description})
	}
	return assets.RenderIllustrationPrompt(assets.IllustrationData{
		Style:      style,
		Characters: refs,
		Scene:      scene,
	})
}
