/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Model: "vm-vision-1", APIKey: "sekrit", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestAnalyzeDecodesValidDescription(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/analyze" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("auth header = %q", got)
		}
		var req struct {
			Model string `json:"model"`
			Data  string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "vm-vision-1" {
			t.Errorf("model = %q", req.Model)
		}
		if _, err := base64.StdEncoding.DecodeString(req.Data); err != nil {
			t.Errorf("request data is not base64: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"subject": "lighthouse at dusk",
			"colors": ["teal", "amber"],
			"style": "long exposure",
			"mood": "calm",
			"lighting": "golden hour",
			"elements": ["lighthouse", "waves"]
		}`))
	}))
	desc, err := c.Analyze(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if desc.Subject != "lighthouse at dusk" {
		t.Errorf("subject = %q", desc.Subject)
	}
	if len(desc.Colors) != 2 || desc.Colors[0] != "teal" {
		t.Errorf("colors = %v", desc.Colors)
	}
}

func TestAnalyzeRejectsPayloadMissingSubject(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"colors": [], "style": "", "mood": "", "lighting": "", "elements": []}`))
	}))
	_, err := c.Analyze(context.Background(), []byte("x"), "image/png")
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	_, err := c.Analyze(context.Background(), []byte("x"), "image/png")
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
}

func TestAnalyzeMapsServerErrorToSentinel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	_, err := c.Analyze(context.Background(), []byte("x"), "image/png")
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
}

func TestGenerateFromReferenceRoundtrip(t *testing.T) {
	want := []byte{0x89, 'P', 'N', 'G'}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		env := map[string]string{"data": base64.StdEncoding.EncodeToString(want)}
		_ = json.NewEncoder(w).Encode(env)
	}))
	got, err := c.GenerateFromReference(context.Background(), "neon alley", []byte("ref"), "image/png")
	if err != nil {
		t.Fatalf("GenerateFromReference: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("payload = %v, want %v", got, want)
	}
}

func TestGenerateEmptyPayloadFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": ""}`))
	}))
	_, err := c.GenerateFromReference(context.Background(), "p", []byte("ref"), "image/png")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestEditMapsFailureToSentinel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	_, err := c.EditImage(context.Background(), "remove the fence", []byte("src"), "image/jpeg")
	if !errors.Is(err, ErrEditFailed) {
		t.Fatalf("err = %v, want ErrEditFailed", err)
	}
}

func TestSuggestIdeasDecodesList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/ideas/suggest" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"ideas": [
			{"id": "idea-1", "title": "Night market", "prompt": "crowded night market, neon", "reason": "matches the mood"},
			{"id": "idea-2", "title": "Fog pier", "prompt": "pier in morning fog", "reason": "matches the palette"}
		]}`))
	}))
	ideas, err := c.SuggestIdeas(context.Background(), nil)
	if err != nil {
		t.Fatalf("SuggestIdeas: %v", err)
	}
	if len(ideas) != 2 || ideas[0].Title != "Night market" {
		t.Errorf("ideas = %+v", ideas)
	}
}
