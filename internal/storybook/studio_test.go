package storybook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/storybook-illustrator/internal/illustrator"
	"github.com/fpang/storybook-illustrator/internal/imageutil"
	"github.com/fpang/storybook-illustrator/internal/kv"
)

// fakeRemote records calls. When gate is set, GenerateIllustration blocks
// until a value is sent on it.
type fakeRemote struct {
	mu sync.Mutex

	description string
	analyzeErr  error
	analyzeGate chan struct{}
	analyzeN    int

	image       []byte
	imageMIME   string
	generateErr error
	gate        chan struct{}
	started     chan struct{}
	generateN   int
	lastStyle   string
	lastChars   []illustrator.Character
	lastScene   string
}

func (f *fakeRemote) AnalyzeStyle(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	f.analyzeN++
	gate := f.analyzeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	return f.description, nil
}

func (f *fakeRemote) GenerateIllustration(ctx context.Context, style string, characters []illustrator.Character, scene string) ([]byte, string, error) {
	f.mu.Lock()
	f.generateN++
	f.lastStyle, f.lastChars, f.lastScene = style, characters, scene
	gate, started := f.gate, f.started
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if f.generateErr != nil {
		return nil, "", f.generateErr
	}
	mimeType := f.imageMIME
	if mimeType == "" {
		mimeType = "image/png"
	}
	return f.image, mimeType, nil
}

func (f *fakeRemote) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeN, f.generateN
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func pngUpload(t *testing.T) *Upload {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return &Upload{Filename: "ref.png", MIMEType: "image/png", Data: buf.Bytes()}
}

func newTestStudio(t *testing.T, remote *fakeRemote, store kv.Store) *Studio {
	t.Helper()
	if store == nil {
		store = kv.NewMemoryStore()
	}
	return NewStudio(context.Background(), StudioConfig{
		Remote: remote,
		Store:  store,
		NewID:  sequentialIDs(),
	})
}

func addPreset(t *testing.T, s *Studio, remote *fakeRemote, name, description string) Preset {
	t.Helper()
	remote.description = description
	p, err := s.CreatePreset(context.Background(), name, pngUpload(t))
	if err != nil {
		t.Fatalf("CreatePreset(%q): %v", name, err)
	}
	return p
}

func storedPresets(t *testing.T, store kv.Store) []Preset {
	t.Helper()
	data, found, err := store.Get(context.Background(), PresetsKey)
	if err != nil || !found {
		t.Fatalf("stored presets: found=%v err=%v", found, err)
	}
	var presets []Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		t.Fatalf("unmarshal stored presets: %v", err)
	}
	return presets
}

func TestNewStudioSeeds(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)
	snap := s.Snapshot()

	if len(snap.Characters) != 2 {
		t.Fatalf("expected 2 seed characters, got %d", len(snap.Characters))
	}
	if !strings.HasPrefix(snap.Characters[0].Name, "Leo") || !strings.HasPrefix(snap.Characters[1].Name, "Willow") {
		t.Errorf("unexpected seed characters %+v", snap.Characters)
	}
	if len(snap.Pages) != 1 || snap.Pages[0].Text == "" {
		t.Errorf("expected one seed page with text, got %+v", snap.Pages)
	}
	if len(snap.Presets) != 0 || len(snap.SelectedPresetIDs) != 0 {
		t.Errorf("expected no presets and empty selection")
	}
}

func TestNewStudioLoadsPresets(t *testing.T) {
	store := kv.NewMemoryStore()
	SavePresets(context.Background(), store, []Preset{{ID: "p1", Name: "Ink", Description: "bold ink"}})

	s := newTestStudio(t, &fakeRemote{}, store)
	if got := s.Snapshot().Presets; len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("presets = %+v", got)
	}
}

func TestGenerateImageEmptyTextNeverCallsRemote(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "Ink", "bold ink")
	s.TogglePresetSelection(p.ID)

	for _, text := range []string{"", "   ", "\n\t "} {
		page := s.AddPage()
		s.SetPageText(page.ID, text)

		got, err := s.GenerateImage(context.Background(), page.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Error != ErrMsgEmptyText || got.IsLoading {
			t.Errorf("text %q: page = %+v", text, got)
		}
	}
	if _, n := remote.calls(); n != 0 {
		t.Errorf("remote called %d times", n)
	}
}

func TestGenerateImageNoSelectionNeverCallsRemote(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStudio(t, remote, nil)
	addPreset(t, s, remote, "Ink", "bold ink")
	pageID := s.Snapshot().Pages[0].ID

	got, err := s.GenerateImage(context.Background(), pageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Error != ErrMsgNoPreset {
		t.Errorf("error = %q", got.Error)
	}
	if _, n := remote.calls(); n != 0 {
		t.Errorf("remote called %d times", n)
	}
}

func TestGenerateImageUnknownPage(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)
	if _, err := s.GenerateImage(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCombinedStyleFollowsPresetOrder(t *testing.T) {
	remote := &fakeRemote{image: []byte("img")}
	s := newTestStudio(t, remote, nil)
	a := addPreset(t, s, remote, "A", "watercolor, pastel")
	b := addPreset(t, s, remote, "B", "bold ink lines")

	// Select in reverse order.
	s.TogglePresetSelection(b.ID)
	s.TogglePresetSelection(a.ID)

	page := s.AddPage()
	s.SetPageText(page.ID, "a fox in a forest")
	got, err := s.GenerateImage(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if remote.lastStyle != "watercolor, pastel\n\n---\n\nbold ink lines" {
		t.Errorf("style = %q", remote.lastStyle)
	}
	if remote.lastScene != "a fox in a forest" {
		t.Errorf("scene = %q", remote.lastScene)
	}
	if len(remote.lastChars) != 2 || !strings.HasPrefix(remote.lastChars[0].Name, "Leo") {
		t.Errorf("characters = %+v", remote.lastChars)
	}
	if got.ImageURL != imageutil.EncodeDataURL("image/png", []byte("img")) || got.IsLoading || got.Error != "" {
		t.Errorf("page = %+v", got)
	}
	if ids := s.Snapshot().SelectedPresetIDs; len(ids) != 2 || ids[0] != a.ID {
		t.Errorf("selection should be listed in preset order, got %v", ids)
	}
}

func TestGenerationLoadingLifecycle(t *testing.T) {
	remote := &fakeRemote{
		image:   []byte("img"),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "Ink", "bold ink")
	s.TogglePresetSelection(p.ID)
	pageID := s.Snapshot().Pages[0].ID

	s.mu.Lock()
	s.pages[0].Error = "old failure"
	s.pages[0].ImageURL = "data:image/png;base64,b2xk"
	s.mu.Unlock()

	started, err := s.StartGeneration(context.Background(), pageID)
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	if !started.IsLoading || started.Error != "" {
		t.Errorf("page right after start = %+v", started)
	}
	<-remote.started

	during, _ := s.Page(pageID)
	if !during.IsLoading {
		t.Error("page should be loading while the call is outstanding")
	}
	if during.ImageURL != "data:image/png;base64,b2xk" {
		t.Error("previous image should stay in place until overwritten")
	}

	if _, err := s.StartGeneration(context.Background(), pageID); !errors.Is(err, ErrGenerationInFlight) {
		t.Errorf("second start error = %v, want ErrGenerationInFlight", err)
	}

	close(remote.gate)
	s.Wait()

	after, _ := s.Page(pageID)
	if after.IsLoading || after.Error != "" || after.ImageURL != imageutil.EncodeDataURL("image/png", []byte("img")) {
		t.Errorf("page after completion = %+v", after)
	}
	if _, n := remote.calls(); n != 1 {
		t.Errorf("remote called %d times, want 1", n)
	}
}

func TestGenerationFailureSetsError(t *testing.T) {
	remote := &fakeRemote{generateErr: &illustrator.Error{Op: "generate illustration", Message: "quota exhausted"}}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "Ink", "bold ink")
	s.TogglePresetSelection(p.ID)
	pageID := s.Snapshot().Pages[0].ID

	got, err := s.GenerateImage(context.Background(), pageID)
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "quota exhausted" {
		t.Fatalf("error = %v", err)
	}
	if got.IsLoading || got.Error != "quota exhausted" {
		t.Errorf("page = %+v", got)
	}

	// Retry restarts from validation and clears the error.
	remote.generateErr = nil
	remote.image = []byte("ok")
	got, err = s.GenerateImage(context.Background(), pageID)
	if err != nil || got.Error != "" || got.ImageURL == "" {
		t.Errorf("retry: page=%+v err=%v", got, err)
	}
}

func TestRemovePageDuringGenerationDiscardsResult(t *testing.T) {
	remote := &fakeRemote{
		image:   []byte("img"),
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "Ink", "bold ink")
	s.TogglePresetSelection(p.ID)

	target := s.Snapshot().Pages[0].ID
	other := s.AddPage()

	if _, err := s.StartGeneration(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	<-remote.started
	if !s.RemovePage(target) {
		t.Fatal("RemovePage failed")
	}
	close(remote.gate)
	s.Wait()

	snap := s.Snapshot()
	if len(snap.Pages) != 1 || snap.Pages[0].ID != other.ID {
		t.Fatalf("pages = %+v", snap.Pages)
	}
	if snap.Pages[0].ImageURL != "" || snap.Pages[0].Error != "" || snap.Pages[0].IsLoading {
		t.Errorf("unrelated page was touched: %+v", snap.Pages[0])
	}
}

func TestConcurrentGenerationsTargetTheirOwnPage(t *testing.T) {
	remote := &fakeRemote{image: []byte("img"), gate: make(chan struct{}), started: make(chan struct{}, 3)}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "Ink", "bold ink")
	s.TogglePresetSelection(p.ID)

	first := s.Snapshot().Pages[0].ID
	second := s.AddPage()
	s.SetPageText(second.ID, "the owl reads a book")

	s.StartGeneration(context.Background(), first)
	s.StartGeneration(context.Background(), second.ID)
	<-remote.started
	<-remote.started

	// Reorder the collection underneath the outstanding calls.
	s.RemovePage(first)
	s.AddPage()

	close(remote.gate)
	s.Wait()

	got, ok := s.Page(second.ID)
	if !ok || got.ImageURL == "" || got.IsLoading {
		t.Errorf("second page = %+v", got)
	}
	snap := s.Snapshot()
	if snap.Pages[1].ImageURL != "" {
		t.Error("new page must not receive a result")
	}
}

func TestRemoveLastPageThenAddPage(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)
	only := s.Snapshot().Pages[0].ID
	if !s.RemovePage(only) {
		t.Fatal("RemovePage failed")
	}
	if n := len(s.Snapshot().Pages); n != 0 {
		t.Fatalf("expected zero pages, got %d", n)
	}
	p := s.AddPage()
	pages := s.Snapshot().Pages
	if len(pages) != 1 || pages[0].ID != p.ID || pages[0].Text != "" || pages[0].ImageURL != "" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestSetPageTextKeepsImageState(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)
	id := s.Snapshot().Pages[0].ID
	s.mu.Lock()
	s.pages[0].ImageURL = "data:image/png;base64,AA=="
	s.pages[0].Error = "e"
	s.mu.Unlock()

	got, ok := s.SetPageText(id, "new text")
	if !ok || got.Text != "new text" || got.ImageURL == "" || got.Error != "e" {
		t.Errorf("page = %+v", got)
	}
	if _, ok := s.SetPageText("missing", "x"); ok {
		t.Error("unknown page should report false")
	}
}

func TestCreatePresetPersistsAndClearsForm(t *testing.T) {
	store := kv.NewMemoryStore()
	SavePresets(context.Background(), store, []Preset{{ID: "old", Name: "Old", Description: "old style"}})
	remote := &fakeRemote{description: "soft watercolor"}
	s := newTestStudio(t, remote, store)

	s.SetPresetFormName("  Watercolor  ")
	form := s.SetPresetFormFile(pngUpload(t))
	if form.PreviewURL == "" || s.Previews().Len() != 1 {
		t.Fatalf("expected a registered preview, form=%+v", form)
	}

	p, err := s.SubmitPresetForm(context.Background())
	if err != nil {
		t.Fatalf("SubmitPresetForm: %v", err)
	}
	if p.Name != "Watercolor" || p.Description != "soft watercolor" {
		t.Errorf("preset = %+v", p)
	}
	if !strings.HasPrefix(p.ImageURL, "data:image/png;base64,") {
		t.Errorf("image url = %q", p.ImageURL)
	}

	stored := storedPresets(t, store)
	if len(stored) != 2 || stored[0].ID != "old" || stored[1].ID != p.ID {
		t.Errorf("stored = %+v", stored)
	}

	snap := s.Snapshot()
	if snap.PresetForm.Name != "" || snap.PresetForm.File != nil || snap.PresetForm.PreviewURL != "" {
		t.Errorf("form not cleared: %+v", snap.PresetForm)
	}
	if s.Previews().Len() != 0 {
		t.Error("preview should be released")
	}
	if snap.Analyzing || snap.AnalysisError != "" {
		t.Errorf("analysis state = %v %q", snap.Analyzing, snap.AnalysisError)
	}
}

func TestCreatePresetValidation(t *testing.T) {
	remote := &fakeRemote{description: "x"}
	s := newTestStudio(t, remote, nil)

	tests := []struct {
		name string
		in   string
		file *Upload
		want error
	}{
		{"empty name", "  ", pngUpload(t), ErrPresetNameRequired},
		{"no file", "Ink", nil, ErrPresetImageRequired},
		{"empty file", "Ink", &Upload{Filename: "a.png"}, ErrPresetImageRequired},
		{"not an image", "Ink", &Upload{Filename: "a.txt", Data: []byte("hello")}, ErrPresetImageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreatePreset(context.Background(), tt.in, tt.file); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if n, _ := remote.calls(); n != 0 {
		t.Errorf("remote analyzed %d times", n)
	}
}

func TestCreatePresetFailureKeepsState(t *testing.T) {
	store := kv.NewMemoryStore()
	remote := &fakeRemote{analyzeErr: &illustrator.Error{Op: "analyze style", Message: "API key is not configured. Set GEMINI_API_KEY."}}
	s := newTestStudio(t, remote, store)
	s.SetPresetFormName("Ink")
	s.SetPresetFormFile(pngUpload(t))

	_, err := s.SubmitPresetForm(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *RemoteError", err)
	}

	snap := s.Snapshot()
	if snap.AnalysisError != "API key is not configured. Set GEMINI_API_KEY." {
		t.Errorf("analysis error = %q", snap.AnalysisError)
	}
	if len(snap.Presets) != 0 || snap.PresetForm.Name != "Ink" || snap.PresetForm.File == nil {
		t.Errorf("state changed on failure: %+v", snap)
	}
	if _, found, _ := store.Get(context.Background(), PresetsKey); found {
		t.Error("nothing should be persisted on failure")
	}

	// The next attempt clears the previous error.
	remote.analyzeErr = nil
	remote.description = "ink"
	if _, err := s.SubmitPresetForm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().AnalysisError != "" {
		t.Error("analysis error should be cleared")
	}
}

func TestCreatePresetSingleFlight(t *testing.T) {
	remote := &fakeRemote{description: "ink", analyzeGate: make(chan struct{})}
	s := newTestStudio(t, remote, nil)

	first, second := pngUpload(t), pngUpload(t)
	done := make(chan error, 1)
	go func() {
		_, err := s.CreatePreset(context.Background(), "First", first)
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !s.Snapshot().Analyzing {
		if time.Now().After(deadline) {
			t.Fatal("analysis never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.CreatePreset(context.Background(), "Second", second); !errors.Is(err, ErrAnalysisInFlight) {
		t.Errorf("reentrant create error = %v", err)
	}
	close(remote.analyzeGate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if n, _ := remote.calls(); n != 1 {
		t.Errorf("analyzed %d times, want 1", n)
	}
	if got := s.Snapshot().Presets; len(got) != 1 || got[0].Name != "First" {
		t.Errorf("presets = %+v", got)
	}
}

func TestRemovePresetDeselectsAndPersists(t *testing.T) {
	store := kv.NewMemoryStore()
	remote := &fakeRemote{}
	s := newTestStudio(t, remote, store)
	a := addPreset(t, s, remote, "A", "a")
	b := addPreset(t, s, remote, "B", "b")
	s.TogglePresetSelection(a.ID)
	s.TogglePresetSelection(b.ID)

	if !s.RemovePreset(context.Background(), a.ID) {
		t.Fatal("RemovePreset failed")
	}

	snap := s.Snapshot()
	if len(snap.Presets) != 1 || snap.Presets[0].ID != b.ID {
		t.Errorf("presets = %+v", snap.Presets)
	}
	if len(snap.SelectedPresetIDs) != 1 || snap.SelectedPresetIDs[0] != b.ID {
		t.Errorf("selection = %v", snap.SelectedPresetIDs)
	}
	if stored := storedPresets(t, store); len(stored) != 1 || stored[0].ID != b.ID {
		t.Errorf("stored = %+v", stored)
	}
	if s.RemovePreset(context.Background(), "missing") {
		t.Error("unknown preset should report false")
	}
}

func TestTogglePresetSelection(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStudio(t, remote, nil)
	p := addPreset(t, s, remote, "A", "a")

	if s.TogglePresetSelection("unknown") {
		t.Error("unknown id should be a no-op")
	}
	s.TogglePresetSelection(p.ID)
	if got := s.Snapshot().SelectedPresetIDs; len(got) != 1 {
		t.Errorf("selection = %v", got)
	}
	s.TogglePresetSelection(p.ID)
	if got := s.Snapshot().SelectedPresetIDs; len(got) != 0 {
		t.Errorf("selection = %v", got)
	}
}

func TestCharacters(t *testing.T) {
	s := NewStudio(context.Background(), StudioConfig{Remote: &fakeRemote{}, SkipSeed: true, NewID: sequentialIDs()})

	if _, ok := s.AddCharacter(" ", "desc"); ok {
		t.Error("blank name should be rejected")
	}
	if _, ok := s.AddCharacter("Fox", "  "); ok {
		t.Error("blank description should be rejected")
	}

	s.SetCharacterForm("  Fox ", " a red fox ")
	ch, ok := s.SubmitCharacterForm()
	if !ok || ch.Name != "Fox" || ch.Description != "a red fox" || ch.ID == "" {
		t.Fatalf("character = %+v ok=%v", ch, ok)
	}
	snap := s.Snapshot()
	if snap.CharacterForm != (CharacterForm{}) {
		t.Errorf("character form not cleared: %+v", snap.CharacterForm)
	}
	if !s.RemoveCharacter(ch.ID) || len(s.Snapshot().Characters) != 0 {
		t.Error("RemoveCharacter failed")
	}
	if s.RemoveCharacter(ch.ID) {
		t.Error("second removal should report false")
	}
}

func TestPresetFormPreviewLifecycle(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)

	first := s.SetPresetFormFile(pngUpload(t))
	second := s.SetPresetFormFile(pngUpload(t))
	if first.PreviewURL == second.PreviewURL {
		t.Error("a new file should get a new preview")
	}
	if s.Previews().Len() != 1 {
		t.Errorf("superseded preview not released, %d live", s.Previews().Len())
	}
	id := strings.TrimPrefix(second.PreviewURL, PreviewPathPrefix)
	if p, ok := s.Preview(id); !ok || p.MIMEType != "image/png" {
		t.Errorf("preview = %+v ok=%v", p, ok)
	}

	s.ResetPresetForm()
	if s.Previews().Len() != 0 {
		t.Error("reset should release the preview")
	}
	if _, ok := s.Preview(id); ok {
		t.Error("released preview still served")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStudio(t, &fakeRemote{}, nil)
	snap := s.Snapshot()
	snap.Pages[0].Text = "mutated"
	snap.Characters[0].Name = "mutated"

	again := s.Snapshot()
	if again.Pages[0].Text == "mutated" || again.Characters[0].Name == "mutated" {
		t.Error("snapshot aliases studio state")
	}
}
