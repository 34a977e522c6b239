// Package storybook holds the application state of the storybook
// illustrator: art-style presets, the selection set, characters, story pages
// and the transient form fields, plus the two remote-call workflows that
// mutate them (preset creation via style analysis, page illustration).
//
// All state lives in a Studio and is mutated only while its mutex is held.
// Remote calls run without the lock; their results are merged back by id.
package storybook

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fpang/storybook-illustrator/internal/illustrator"
	"github.com/fpang/storybook-illustrator/internal/imageutil"
	"github.com/fpang/storybook-illustrator/internal/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Remote is the illustration service used by the studio.
type Remote interface {
	AnalyzeStyle(ctx context.Context, data []byte, mimeType string) (string, error)
	GenerateIllustration(ctx context.Context, style string, characters []illustrator.Character, scene string) ([]byte, string, error)
}

// StudioConfig holds the collaborators of a Studio.
type StudioConfig struct {
	Remote Remote
	Store  kv.Store

	// Previews defaults to a registry with PreviewTTL (30 minutes when zero).
	Previews   *PreviewRegistry
	PreviewTTL time.Duration

	// MaxPresetImageDimension bounds stored reference images. Zero uses
	// imageutil.DefaultMaxDimension; negative disables downscaling.
	MaxPresetImageDimension int

	// SkipSeed starts with no characters and no pages.
	SkipSeed bool

	// NewID defaults to uuid.NewString.
	NewID func() string
}

// Studio is the single application state store.
type Studio struct {
	mu sync.Mutex
	// persistMu orders writes of the preset collection.
	persistMu sync.Mutex
	inflight  sync.WaitGroup

	remote   Remote
	store    kv.Store
	previews *PreviewRegistry
	newID    func() string
	maxDim   int

	presets       []Preset
	selected      map[string]bool
	characters    []Character
	pages         []Page
	presetForm    PresetForm
	characterForm CharacterForm
	analyzing     bool
	analysisError string
}

// NewStudio loads the saved presets once and seeds the default characters
// and page.
func NewStudio(ctx context.Context, cfg StudioConfig) *Studio {
	s := &Studio{
		remote:   cfg.Remote,
		store:    cfg.Store,
		previews: cfg.Previews,
		newID:    cfg.NewID,
		maxDim:   cfg.MaxPresetImageDimension,
		selected: make(map[string]bool),
	}
	if s.previews == nil {
		s.previews = NewPreviewRegistry(cfg.PreviewTTL)
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.maxDim == 0 {
		s.maxDim = imageutil.DefaultMaxDimension
	}

	s.presets = LoadPresets(ctx, s.store)
	s.characters = []Character{}
	s.pages = []Page{}
	if !cfg.SkipSeed {
		for _, ch := range seedCharacters {
			ch.ID = s.newID()
			s.characters = append(s.characters, ch)
		}
		s.pages = append(s.pages, Page{ID: s.newID(), Text: seedPageText})
	}
	return s
}

// Previews returns the preview registry.
func (s *Studio) Previews() *PreviewRegistry {
	return s.previews
}

// --- Presets ---

// CreatePreset analyzes the style of file and appends a new preset named
// name. At most one creation runs at a time; a call made while another is
// analyzing returns ErrAnalysisInFlight and changes nothing.
func (s *Studio) CreatePreset(ctx context.Context, name string, file *Upload) (Preset, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	switch {
	case s.analyzing:
		s.mu.Unlock()
		return Preset{}, ErrAnalysisInFlight
	case name == "":
		s.mu.Unlock()
		return Preset{}, ErrPresetNameRequired
	case file == nil || len(file.Data) == 0:
		s.mu.Unlock()
		return Preset{}, ErrPresetImageRequired
	}
	mimeType := imageutil.DetectMIME(file.Data, file.MIMEType)
	if !imageutil.IsImageMIME(mimeType) {
		s.mu.Unlock()
		return Preset{}, ErrPresetImageType
	}
	data := file.Data
	s.analyzing = true
	s.analysisError = ""
	s.mu.Unlock()

	log.Info().Str("name", name).Str("mime", mimeType).Int("bytes", len(data)).Msg("Creating preset")

	description, err := s.remote.AnalyzeStyle(context.WithoutCancel(ctx), data, mimeType)
	var imageURL string
	if err == nil {
		imageURL = s.presetImageURL(data, mimeType)
	}

	s.mu.Lock()
	s.analyzing = false
	if err != nil {
		msg := illustrator.Message(err)
		s.analysisError = msg
		s.mu.Unlock()
		log.Warn().Err(err).Str("name", name).Msg("Style analysis failed")
		return Preset{}, &RemoteError{Op: "create preset", Message: msg, Err: err}
	}
	preset := Preset{
		ID:          s.newID(),
		Name:        name,
		ImageURL:    imageURL,
		Description: description,
	}
	s.presets = append(s.presets, preset)
	s.resetPresetFormLocked()
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx))
	log.Info().Str("id", preset.ID).Str("name", name).Int("description_length", len(description)).Msg("Preset created")
	return preset, nil
}

// SubmitPresetForm creates a preset from the current preset form fields.
func (s *Studio) SubmitPresetForm(ctx context.Context) (Preset, error) {
	s.mu.Lock()
	name, file := s.presetForm.Name, s.presetForm.File
	s.mu.Unlock()
	return s.CreatePreset(ctx, name, file)
}

// SetPresetFormName sets the transient preset name.
func (s *Studio) SetPresetFormName(name string) PresetForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presetForm.Name = name
	return s.presetForm
}

// SetPresetFormFile sets the transient reference image. The preview of the
// previous file is released; a nil upload clears the file.
func (s *Studio) SetPresetFormFile(upload *Upload) PresetForm {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previews.Release(s.presetForm.previewID)
	s.presetForm.File = nil
	s.presetForm.PreviewURL = ""
	s.presetForm.previewID = ""
	if upload == nil || len(upload.Data) == 0 {
		return s.presetForm
	}

	mimeType := imageutil.DetectMIME(upload.Data, upload.MIMEType)
	u := &Upload{Filename: upload.Filename, MIMEType: mimeType, Data: upload.Data}
	id := s.newID()
	s.presetForm.File = u
	s.presetForm.previewID = id
	s.presetForm.PreviewURL = s.previews.Register(id, Preview{MIMEType: mimeType, Data: u.Data})
	return s.presetForm
}

// ResetPresetForm clears the preset form and releases its preview.
func (s *Studio) ResetPresetForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetPresetFormLocked()
}

func (s *Studio) resetPresetFormLocked() {
	s.previews.Release(s.presetForm.previewID)
	s.presetForm = PresetForm{}
}

// TogglePresetSelection flips the membership of id in the selection set.
// It reports false for an unknown id.
func (s *Studio) TogglePresetSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presetIndex(id) < 0 {
		return false
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	return true
}

// RemovePreset removes the preset, deselects it and persists the collection.
func (s *Studio) RemovePreset(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := s.presetIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.presets = append(s.presets[:i], s.presets[i+1:]...)
	delete(s.selected, id)
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx))
	log.Info().Str("id", id).Msg("Preset removed")
	return true
}

// persist writes the current preset collection. Writes are serialized so the
// last write always reflects the latest collection.
func (s *Studio) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	presets := append([]Preset(nil), s.presets...)
	s.mu.Unlock()

	SavePresets(ctx, s.store, presets)
}

func (s *Studio) presetImageURL(data []byte, mimeType string) string {
	if s.maxDim > 0 {
		scaled, scaledMIME, err := imageutil.Downscale(data, mimeType, s.maxDim)
		if err == nil {
			return imageutil.EncodeDataURL(scaledMIME, scaled)
		}
		log.Warn().Err(err).Str("mime", mimeType).Msg("Could not re-encode reference image, storing original")
	}
	return imageutil.EncodeDataURL(mimeType, data)
}

func (s *Studio) presetIndex(id string) int {
	for i := range s.presets {
		if s.presets[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Characters ---

// AddCharacter appends a character when both trimmed fields are non-empty
// and clears the character form. Otherwise it changes nothing.
func (s *Studio) AddCharacter(name, description string) (Character, bool) {
	name, description = strings.TrimSpace(name), strings.TrimSpace(description)
	if name == "" || description == "" {
		return Character{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := Character{ID: s.newID(), Name: name, Description: description}
	s.characters = append(s.characters, ch)
	s.characterForm = CharacterForm{}
	return ch, true
}

// SetCharacterForm sets the transient character fields.
func (s *Studio) SetCharacterForm(name, description string) CharacterForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characterForm = CharacterForm{Name: name, Description: description}
	return s.characterForm
}

// SubmitCharacterForm adds a character from the character form.
func (s *Studio) SubmitCharacterForm() (Character, bool) {
	s.mu.Lock()
	form := s.characterForm
	s.mu.Unlock()
	return s.AddCharacter(form.Name, form.Description)
}

// RemoveCharacter removes the character with id.
func (s *Studio) RemoveCharacter(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.characters {
		if s.characters[i].ID == id {
			s.characters = append(s.characters[:i], s.characters[i+1:]...)
			return true
		}
	}
	return false
}

// --- Pages ---

// AddPage appends an empty page.
func (s *Studio) AddPage() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Page{ID: s.newID()}
	s.pages = append(s.pages, p)
	return p
}

// RemovePage removes the page with id. An outstanding generation for the
// page is discarded when it completes.
func (s *Studio) RemovePage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pageIndex(id)
	if i < 0 {
		return false
	}
	s.pages = append(s.pages[:i], s.pages[i+1:]...)
	return true
}

// SetPageText replaces the text of a page, leaving its image state alone.
func (s *Studio) SetPageText(id, text string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pageIndex(id)
	if i < 0 {
		return Page{}, false
	}
	s.pages[i].Text = text
	return s.pages[i], true
}

func (s *Studio) pageIndex(id string) int {
	for i := range s.pages {
		if s.pages[i].ID == id {
			return i
		}
	}
	return -1
}

// --- Generation ---

type generationJob struct {
	pageID     string
	style      string
	characters []illustrator.Character
	text       string
}

// GenerateImage validates the page and, when accepted, runs the illustration
// call and waits for it. Local rejections are reported on the returned page's
// Error field with a nil error.
func (s *Studio) GenerateImage(ctx context.Context, pageID string) (Page, error) {
	job, page, err := s.beginGeneration(pageID)
	if err != nil || job == nil {
		return page, err
	}
	return s.runGeneration(context.WithoutCancel(ctx), job)
}

// StartGeneration validates the page like GenerateImage but runs the remote
// call on its own goroutine. The returned page reflects the state right after
// validation (loading, or rejected with an error message).
func (s *Studio) StartGeneration(ctx context.Context, pageID string) (Page, error) {
	job, page, err := s.beginGeneration(pageID)
	if err != nil || job == nil {
		return page, err
	}
	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.runGeneration(bg, job)
	}()
	return page, nil
}

// Wait blocks until every started generation has completed.
func (s *Studio) Wait() {
	s.inflight.Wait()
}

// beginGeneration runs validation and, when accepted, marks the page loading.
// A nil job with a nil error means the page was rejected locally.
func (s *Studio) beginGeneration(pageID string) (*generationJob, Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.pageIndex(pageID)
	if i < 0 {
		return nil, Page{}, ErrNotFound
	}
	page := &s.pages[i]
	if page.IsLoading {
		return nil, *page, ErrGenerationInFlight
	}
	if strings.TrimSpace(page.Text) == "" {
		page.Error = ErrMsgEmptyText
		return nil, *page, nil
	}
	if len(s.selected) == 0 {
		page.Error = ErrMsgNoPreset
		return nil, *page, nil
	}

	job := &generationJob{
		pageID: pageID,
		style:  s.combinedStyleLocked(),
		text:   page.Text,
	}
	for _, ch := range s.characters {
		job.characters = append(job.characters, illustrator.Character{Name: ch.Name, Description: ch.Description})
	}
	page.IsLoading = true
	page.Error = ""
	return job, *page, nil
}

func (s *Studio) runGeneration(ctx context.Context, job *generationJob) (Page, error) {
	log.Info().Str("page", job.pageID).Int("characters", len(job.characters)).Msg("Generating illustration")

	data, mimeType, err := s.remote.GenerateIllustration(ctx, job.style, job.characters, job.text)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pageIndex(job.pageID)
	if i < 0 {
		log.Info().Str("page", job.pageID).Msg("Page removed while generating, discarding result")
		return Page{}, ErrNotFound
	}
	page := &s.pages[i]
	page.IsLoading = false
	if err != nil {
		msg := illustrator.Message(err)
		page.Error = msg
		log.Warn().Err(err).Str("page", job.pageID).Msg("Illustration failed")
		return *page, &RemoteError{Op: "generate image", Message: msg, Err: err}
	}
	page.ImageURL = imageutil.EncodeDataURL(mimeType, data)
	page.Error = ""
	log.Info().Str("page", job.pageID).Int("bytes", len(data)).Msg("Illustration stored")
	return *page, nil
}

// CombinedStyle returns the descriptions of the selected presets in preset
// order, joined by StyleSeparator.
func (s *Studio) CombinedStyle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combinedStyleLocked()
}

func (s *Studio) combinedStyleLocked() string {
	parts := make([]string, 0, len(s.selected))
	for _, p := range s.presets {
		if s.selected[p.ID] {
			parts = append(parts, p.Description)
		}
	}
	return strings.Join(parts, StyleSeparator)
}

// --- Reads ---

// Snapshot returns a deep copy of the whole state.
func (s *Studio) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Presets:           append([]Preset{}, s.presets...),
		SelectedPresetIDs: []string{},
		Characters:        append([]Character{}, s.characters...),
		Pages:             append([]Page{}, s.pages...),
		PresetForm:        s.presetForm,
		CharacterForm:     s.characterForm,
		Analyzing:         s.analyzing,
		AnalysisError:     s.analysisError,
	}
	for _, p := range s.presets {
		if s.selected[p.ID] {
			snap.SelectedPresetIDs = append(snap.SelectedPresetIDs, p.ID)
		}
	}
	if f := s.presetForm.File; f != nil {
		snap.PresetForm.File = &Upload{Filename: f.Filename, MIMEType: f.MIMEType}
	}
	return snap
}

// Page returns the page with id.
func (s *Studio) Page(id string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pageIndex(id)
	if i < 0 {
		return Page{}, false
	}
	return s.pages[i], true
}

// Preset returns the preset with id.
func (s *Studio) Preset(id string) (Preset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.presetIndex(id)
	if i < 0 {
		return Preset{}, false
	}
	return s.presets[i], true
}

// Preview returns a registered preview.
func (s *Studio) Preview(id string) (Preview, bool) {
	return s.previews.Get(id)
}
