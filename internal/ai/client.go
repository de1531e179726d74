/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ai is the HTTP client for the external model-inference API. It
// implements the collaborator contract the gallery service depends on and
// never touches storage itself: every failure here happens strictly before
// any write.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"github.com/trpwrmusic/vibematch-gallery/internal/domain"
	applog "github.com/trpwrmusic/vibematch-gallery/internal/log"
)

// Collaborator-side failure taxonomy. Callers match with errors.Is.
var (
	ErrAnalysisFailed   = errors.New("analysis failed")
	ErrGenerationFailed = errors.New("generation failed")
	ErrEditFailed       = errors.New("edit failed")
)

// descriptionSchema is the shape an analysis response must satisfy before it
// is accepted. Empty or malformed model output maps to ErrAnalysisFailed.
const descriptionSchema = `{
	"type": "object",
	"required": ["subject", "colors", "style", "mood", "lighting", "elements"],
	"properties": {
		"subject":  {"type": "string", "minLength": 1},
		"colors":   {"type": "array", "items": {"type": "string"}},
		"style":    {"type": "string"},
		"mood":     {"type": "string"},
		"lighting": {"type": "string"},
		"elements": {"type": "array", "items": {"type": "string"}}
	}
}`

// Config holds the connection settings for the inference API.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string // loaded from the OS keyring, never from disk
	Timeout time.Duration
}

// Client talks to the inference API. Safe for concurrent use.
type Client struct {
	cfg    Config
	cli    *http.Client
	log    *slog.Logger
	schema *gojsonschema.Schema
}

// New constructs a client and compiles the analysis response schema.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("inference base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile description schema: %w", err)
	}
	return &Client{
		cfg:    cfg,
		cli:    &http.Client{Timeout: cfg.Timeout},
		log:    applog.WithComponent("ai"),
		schema: schema,
	}, nil
}

// Analyze derives the structured visual description of one image.
func (c *Client) Analyze(ctx context.Context, data []byte, mimeType string) (domain.ImageDescription, error) {
	body := map[string]any{
		"model":     c.cfg.Model,
		"mime_type": mimeType,
		"data":      base64.StdEncoding.EncodeToString(data),
	}
	raw, err := c.post(ctx, "/v1/images/analyze", body)
	if err != nil {
		return domain.ImageDescription{}, fmt.Errorf("%v: %w", err, ErrAnalysisFailed)
	}
	res, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return domain.ImageDescription{}, fmt.Errorf("validate response: %v: %w", err, ErrAnalysisFailed)
	}
	if !res.Valid() {
		c.log.Warn("analysis response rejected by schema", slog.Int("problems", len(res.Errors())))
		return domain.ImageDescription{}, fmt.Errorf("malformed description: %w", ErrAnalysisFailed)
	}
	var desc domain.ImageDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return domain.ImageDescription{}, fmt.Errorf("decode description: %v: %w", err, ErrAnalysisFailed)
	}
	return desc, nil
}

// SuggestIdeas asks for prompt ideas from the given descriptions. Best-effort;
// a failure carries no sentinel because callers do not branch on it.
func (c *Client) SuggestIdeas(ctx context.Context, descs []domain.ImageDescription) ([]domain.SuggestedIdea, error) {
	body := map[string]any{
		"model":        c.cfg.Model,
		"descriptions": descs,
	}
	raw, err := c.post(ctx, "/v1/ideas/suggest", body)
	if err != nil {
		return nil, fmt.Errorf("suggest ideas: %w", err)
	}
	var out struct {
		Ideas []domain.SuggestedIdea `json:"ideas"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ideas: %w", err)
	}
	return out.Ideas, nil
}

// GenerateFromReference produces a new image matching the reference's look.
func (c *Client) GenerateFromReference(ctx context.Context, prompt string, refData []byte, refMimeType string) ([]byte, error) {
	body := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"reference": map[string]any{
			"mime_type": refMimeType,
			"data":      base64.StdEncoding.EncodeToString(refData),
		},
	}
	img, err := c.postImage(ctx, "/v1/images/generate", body)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrGenerationFailed)
	}
	return img, nil
}

// EditImage rewrites the source image following the prompt.
func (c *Client) EditImage(ctx context.Context, prompt string, srcData []byte, srcMimeType string) ([]byte, error) {
	body := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"source": map[string]any{
			"mime_type": srcMimeType,
			"data":      base64.StdEncoding.EncodeToString(srcData),
		},
	}
	img, err := c.postImage(ctx, "/v1/images/edit", body)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrEditFailed)
	}
	return img, nil
}

// postImage posts and decodes the {"data": <base64>} image envelope.
func (c *Client) postImage(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	raw, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode image envelope: %v", err)
	}
	if out.Data == "" {
		return nil, errors.New("empty image payload")
	}
	img, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %v", err)
	}
	return img, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %v", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty response")
	}
	return raw, nil
}
