// Package illustrator talks to the Gemini API: it describes the visual style
// of a reference image and renders story page illustrations in that style.
package illustrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/storybook-illustrator/internal/assets"
	"github.com/fpang/storybook-illustrator/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Character is one entry of the reference sheet sent with every illustration.
type Character struct {
	Name        string
	Description string
}

// Config holds the settings for New.
type Config struct {
	APIKey        string
	AnalysisModel string
	ImageModel    string

	// Interval is the minimum spacing between remote calls. Zero disables pacing.
	Interval time.Duration

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *metrics.Emitter
}

// Client is the adapter to the remote illustration service. A Client created
// without an API key is valid; every call fails with ErrNoCredential.
type Client struct {
	genai         *genai.Client
	analysisModel string
	imageModel    string
	limiter       *rate.Limiter
	metrics       *metrics.Emitter
}

// New creates a Client. It never fails because of a missing key.
func New(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		analysisModel: cfg.AnalysisModel,
		imageModel:    cfg.ImageModel,
		metrics:       cfg.Metrics,
	}
	if c.analysisModel == "" {
		c.analysisModel = DefaultAnalysisModel
	}
	if c.imageModel == "" {
		c.imageModel = DefaultImageModel
	}
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}
	if cfg.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn().Msg("No Gemini API key configured; style analysis and illustration will fail")
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// HasCredential reports whether remote calls can be attempted.
func (c *Client) HasCredential() bool {
	return c.genai != nil
}

// GenAI returns the underlying SDK client, nil without a credential.
func (c *Client) GenAI() *genai.Client {
	return c.genai
}

// AnalysisModel returns the model used by AnalyzeStyle.
func (c *Client) AnalysisModel() string { return c.analysisModel }

// ImageModel returns the model used by GenerateIllustration.
func (c *Client) ImageModel() string { return c.imageModel }

// AnalyzeStyle returns a description of the visual style of an image,
// excluding what the image depicts.
func (c *Client) AnalyzeStyle(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "analyze style"
	if c.genai == nil {
		return "", wrap(op, ErrNoCredential)
	}
	if err := c.wait(ctx); err != nil {
		return "", wrap(op, err)
	}

	log.Info().
		Str("model", c.analysisModel).
		Int("image_bytes", len(data)).
		Str("image_mime", mimeType).
		Msg("Sending reference image for style analysis")

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: assets.StyleAnalysisPrompt},
		},
	}}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.analysisModel, contents, nil)
	elapsed := time.Since(start)

	var text string
	if err == nil && resp != nil {
		text = cleanDescription(resp.Text())
	}
	if err == nil && text == "" {
		err = fmt.Errorf("empty style description")
	}
	c.record("AnalyzeStyle", c.analysisModel, elapsed, err)
	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("Style analysis failed")
		return "", wrap(op, err)
	}

	log.Info().
		Int("response_length", len(text)).
		Dur("duration", elapsed).
		Msg("Style analysis complete")
	return text, nil
}

// GenerateIllustration renders one square illustration of scene in the given
// style and returns the image bytes and MIME type.
func (c *Client) GenerateIllustration(ctx context.Context, style string, characters []Character, scene string) ([]byte, string, error) {
	const op = "generate illustration"
	if c.genai == nil {
		return nil, "", wrap(op, ErrNoCredential)
	}

	prompt, err := BuildIllustrationPrompt(style, characters, scene)
	if err != nil {
		return nil, "", wrap(op, err)
	}
	if err := c.wait(ctx); err != nil {
		return nil, "", wrap(op, err)
	}

	log.Info().
		Str("model", c.imageModel).
		Int("characters", len(characters)).
		Int("prompt_length", len(prompt)).
		Msg("Requesting illustration")

	start := time.Now()
	var data []byte
	var mimeType string
	if IsImagenModel(c.imageModel) {
		data, mimeType, err = c.generateImagen(ctx, prompt)
	} else {
		data, mimeType, err = c.generateGeminiImage(ctx, prompt)
	}
	elapsed := time.Since(start)
	c.record("GenerateIllustration", c.imageModel, elapsed, err)
	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("Illustration failed")
		return nil, "", wrap(op, err)
	}

	log.Info().
		Int("output_bytes", len(data)).
		Str("output_mime", mimeType).
		Dur("duration", elapsed).
		Msg("Illustration complete")
	return data, mimeType, nil
}

func (c *Client) generateImagen(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := c.genai.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "1:1",
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, "", err
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, "", ErrNoImage
	}
	img := resp.GeneratedImages[0].Image
	if img == nil || len(img.ImageBytes) == 0 {
		return nil, "", ErrNoImage
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return img.ImageBytes, mimeType, nil
}

func (c *Client) generateGeminiImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: "1:1"},
	})
	if err != nil {
		return nil, "", err
	}
	if resp == nil {
		return nil, "", ErrNoImage
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return part.InlineData.Data, mimeType, nil
			}
		}
	}
	return nil, "", ErrNoImage
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) record(operation, model string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.metrics.New().
		Dimension("Operation", operation).
		Dimension("Result", result).
		Property("Model", model).
		Duration("RemoteCallLatencyMs", elapsed).
		Count("RemoteCalls").
		Flush()
}
