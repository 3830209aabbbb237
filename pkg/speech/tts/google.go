package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GoogleBaseURL is the default Cloud Text-to-Speech REST endpoint.
const GoogleBaseURL = "https://texttospeech.googleapis.com/v1"

// DefaultGoogleVoice is used when no voice is requested.
const DefaultGoogleVoice = "en-US-Standard-A"

// Google synthesizes speech through the Cloud Text-to-Speech REST API using
// an API key.
type Google struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GoogleOption configures a Google provider.
type GoogleOption func(*Google)

// WithGoogleBaseURL overrides the API endpoint.
func WithGoogleBaseURL(u string) GoogleOption {
	return func(g *Google) { g.baseURL = u }
}

// WithGoogleHTTPClient overrides the HTTP client.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.httpClient = c }
}

// NewGoogle creates a Google provider. Returns nil when apiKey is empty.
func NewGoogle(apiKey string, opts ...GoogleOption) *Google {
	if apiKey == "" {
		return nil
	}
	g := &Google{
		apiKey:     apiKey,
		baseURL:    GoogleBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Name() string { return "google_tts" }

type googleSynthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type googleVoicesResponse struct {
	Voices []struct {
		Name          string   `json:"name"`
		LanguageCodes []string `json:"languageCodes"`
		SSMLGender    string   `json:"ssmlGender"`
	} `json:"voices"`
}

// Synthesize renders text as MP3 audio.
func (g *Google) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if text == "" {
		return nil, fmt.Errorf("text is empty")
	}
	voice := opts.Voice
	if voice == "" {
		voice = DefaultGoogleVoice
	}
	speed := opts.Speed
	if speed == 0 {
		speed = 1.0
	}

	var req googleSynthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = "en-US"
	req.Voice.Name = voice
	req.AudioConfig.AudioEncoding = "MP3"
	req.AudioConfig.SpeakingRate = speed

	var parsed googleSynthesizeResponse
	if err := g.post(ctx, "/text:synthesize", req, &parsed); err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return &Synthesis{Audio: audio, Format: "mp3"}, nil
}

// Voices lists the English voices the service offers.
func (g *Google) Voices(ctx context.Context) ([]Voice, error) {
	url := g.endpoint("/voices") + "&languageCode=en"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var parsed googleVoicesResponse
	if err := g.do(httpReq, &parsed); err != nil {
		return nil, err
	}

	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		if len(v.LanguageCodes) == 0 || !strings.HasPrefix(v.LanguageCodes[0], "en") {
			continue
		}
		voices = append(voices, Voice{
			Name:     v.Name,
			Language: v.LanguageCodes[0],
			Gender:   v.SSMLGender,
		})
	}
	return voices, nil
}

func (g *Google) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return g.do(httpReq, out)
}

func (g *Google) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("google tts api: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("google tts api: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (g *Google) endpoint(path string) string {
	return strings.TrimRight(g.baseURL, "/") + path + "?key=" + g.apiKey
}
