// Package voice wraps the ElevenLabs text-to-speech and speech-to-text APIs.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
)

const (
	ttsOutputFormat = "mp3_44100_128"
	maxAudioBytes   = 25 << 20
)

// Audio synthesized speech
type Audio struct {
	Data     []byte
	MimeType string
}

// DataURL base64 data URL, the form providers accept for inline audio
func (a *Audio) DataURL() string {
	return dataurl.New(a.Data, a.MimeType).String()
}

type Client struct {
	http         *resty.Client
	apiKey       string
	defaultVoice string
	ttsModel     string
	sttModel     string
	logger       *zap.Logger
}

func NewClient(cfg config.ElevenLabsConfig, logger *zap.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("xi-api-key", cfg.APIKey),
		apiKey:       cfg.APIKey,
		defaultVoice: cfg.DefaultVoice,
		ttsModel:     cfg.TTSModel,
		sttModel:     cfg.STTModel,
		logger:       logger.Named("elevenlabs"),
	}
}

// Enabled false when no API key is configured
func (c *Client) Enabled() bool { return c.apiKey != "" }

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text with voiceID (the configured default when empty)
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if !c.Enabled() {
		return nil, apperrors.Wrap(apperrors.ErrExternal, "elevenlabs not configured")
	}
	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	if voiceID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "no voice selected")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/mpeg").
		SetQueryParam("output_format", ttsOutputFormat).
		SetBody(ttsRequest{Text: text, ModelID: c.ttsModel}).
		Post("/v1/text-to-speech/" + voiceID)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs tts: %w: %v", apperrors.ErrExternal, err)
	}
	if resp.IsError() {
		c.logger.Warn("tts failed", zap.Int("status", resp.StatusCode()), zap.String("voice_id", voiceID))
		return nil, fmt.Errorf("%w: elevenlabs tts status %d", apperrors.ErrExternal, resp.StatusCode())
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: elevenlabs tts returned no audio", apperrors.ErrExternal)
	}
	return &Audio{Data: data, MimeType: detectAudioMime(data)}, nil
}

type sttResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}

// Transcribe downloads the audio at mediaURL (or decodes it when it is a
// data URL) and returns its transcription
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	if !c.Enabled() {
		return "", apperrors.Wrap(apperrors.ErrExternal, "elevenlabs not configured")
	}

	audio, err := c.fetchAudio(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	var out sttResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"model_id": c.sttModel}).
		SetFileReader("file", "audio"+extensionFor(audio.MimeType), bytes.NewReader(audio.Data)).
		SetResult(&out).
		Post("/v1/speech-to-text")
	if err != nil {
		return "", fmt.Errorf("elevenlabs stt: %w: %v", apperrors.ErrExternal, err)
	}
	if resp.IsError() {
		c.logger.Warn("stt failed", zap.Int("status", resp.StatusCode()))
		return "", fmt.Errorf("%w: elevenlabs stt status %d", apperrors.ErrExternal, resp.StatusCode())
	}
	return strings.TrimSpace(out.Text), nil
}

func (c *Client) fetchAudio(ctx context.Context, mediaURL string) (*Audio, error) {
	if strings.HasPrefix(mediaURL, "data:") {
		du, err := dataurl.DecodeString(mediaURL)
		if err != nil {
			return nil, fmt.Errorf("%w: bad audio data url: %v", apperrors.ErrInvalidInput, err)
		}
		return &Audio{Data: du.Data, MimeType: detectAudioMime(du.Data)}, nil
	}

	// the media host is not ElevenLabs: plain client, no api key header
	resp, err := resty.New().SetTimeout(c.http.GetClient().Timeout).R().
		SetContext(ctx).
		Get(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("download audio: %w: %v", apperrors.ErrExternal, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: download audio status %d", apperrors.ErrExternal, resp.StatusCode())
	}
	data := resp.Body()
	if len(data) == 0 || len(data) > maxAudioBytes {
		return nil, fmt.Errorf("%w: audio size %d out of range", apperrors.ErrInvalidInput, len(data))
	}
	return &Audio{Data: data, MimeType: detectAudioMime(data)}, nil
}

func detectAudioMime(data []byte) string {
	return mimetype.Detect(data).String()
}

func extensionFor(mime string) string {
	if m := mimetype.Lookup(mime); m != nil {
		return m.Extension()
	}
	return ""
}
