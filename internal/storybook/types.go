package storybook

import (
	"errors"
)

// Fixed messages attached to a page when generation is rejected locally.
const (
	ErrMsgEmptyText = "Please write the story text first."
	ErrMsgNoPreset  = "Please select at least one art style preset first."
)

// StyleSeparator joins the descriptions of the selected presets.
const StyleSeparator = "\n\n---\n\n"

var (
	// ErrPresetNameRequired is returned when a preset is created without a name.
	ErrPresetNameRequired = errors.New("preset name is required")
	// ErrPresetImageRequired is returned when a preset is created without an image.
	ErrPresetImageRequired = errors.New("preset reference image is required")
	// ErrPresetImageType is returned when the uploaded file is not an image.
	ErrPresetImageType = errors.New("preset reference file must be an image")
	// ErrAnalysisInFlight is returned while another preset is being analyzed.
	ErrAnalysisInFlight = errors.New("a style analysis is already in progress")
	// ErrGenerationInFlight is returned when the page is already generating.
	ErrGenerationInFlight = errors.New("an illustration is already being generated for this page")
	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrCharacterFieldsRequired is returned when a character lacks a name or description.
	ErrCharacterFieldsRequired = errors.New("character name and description are required")
)

// Character is a reusable story character.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Page is one unit of story text with at most one illustration. While
// IsLoading is true, Error is empty.
type Page struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ImageURL  string `json:"imageUrl,omitempty"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Preset is a named art-style description derived from a reference image.
// ImageURL is a self-contained data URL.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
}

// Upload is a reference image that has not been submitted yet.
type Upload struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// PresetForm holds the transient new-preset fields.
type PresetForm struct {
	Name       string  `json:"name"`
	File       *Upload `json:"file,omitempty"`
	PreviewURL string  `json:"previewUrl,omitempty"`

	previewID string
}

// CharacterForm holds the transient new-character fields.
type CharacterForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Snapshot is a deep copy of the studio state.
type Snapshot struct {
	Presets           []Preset      `json:"presets"`
	SelectedPresetIDs []string      `json:"selectedPresetIds"`
	Characters        []Character   `json:"characters"`
	Pages             []Page        `json:"pages"`
	PresetForm        PresetForm    `json:"presetForm"`
	CharacterForm     CharacterForm `json:"characterForm"`
	Analyzing         bool          `json:"isAnalyzing"`
	AnalysisError     string        `json:"analysisError,omitempty"`
}

// RemoteError is a failed call to the illustration service. Message is the
// text attached to the record that triggered the call.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
