package storybook

import (
	"context"
	"encoding/json"

	"github.com/fpang/storybook-illustrator/internal/kv"
	"github.com/rs/zerolog/log"
)

// PresetsKey is the key under which the preset collection is stored.
const PresetsKey = "storybook.artStylePresets"

// LoadPresets reads the stored preset collection. A missing, unreadable or
// malformed record yields an empty collection; failures are only logged.
func LoadPresets(ctx context.Context, store kv.Store) []Preset {
	if store == nil {
		return []Preset{}
	}
	data, found, err := store.Get(ctx, PresetsKey)
	if err != nil {
		log.Error().Err(err).Str("key", PresetsKey).Msg("Failed to read saved presets")
		return []Preset{}
	}
	if !found {
		return []Preset{}
	}

	var presets []Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		log.Error().Err(err).Str("key", PresetsKey).Msg("Failed to parse saved presets")
		return []Preset{}
	}
	if presets == nil {
		presets = []Preset{}
	}
	log.Info().Int("count", len(presets)).Msg("Loaded saved presets")
	return presets
}

// SavePresets overwrites the stored preset collection. Failures are logged
// and otherwise ignored; the in-memory collection stays authoritative.
func SavePresets(ctx context.Context, store kv.Store, presets []Preset) {
	if store == nil {
		return
	}
	if presets == nil {
		presets = []Preset{}
	}
	data, err := json.Marshal(presets)
	if err != nil {
		log.Error().Err(err).Msg("Failed to serialize presets")
		return
	}
	if err := store.Put(ctx, PresetsKey, data); err != nil {
		log.Error().Err(err).Str("key", PresetsKey).Msg("Failed to save presets")
		return
	}
	log.Debug().Int("count", len(presets)).Int("bytes", len(data)).Msg("Saved presets")
}
