/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the
// user scope. Environment variables are treated as read-only overrides at
// runtime. The inference API key never lands in this file; it lives in the OS
// keyring only.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type LibraryConfig struct {
	Root string `yaml:"root"` // directory holding the .vibematch library, "" = user home
}

type InferenceConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// The API key is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Library       LibraryConfig   `yaml:"library"`
	Inference     InferenceConfig `yaml:"inference"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Library:       LibraryConfig{Root: ""},
		Inference:     InferenceConfig{BaseURL: "https://api.vibematch.app", Model: "vm-vision-1", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvLibraryRoot        = "VM_LIBRARY_ROOT"
	EnvInferenceURL       = "VM_INFERENCE_URL"
	EnvInferenceModel     = "VM_INFERENCE_MODEL"
	EnvInferenceTimeoutMs = "VM_INFERENCE_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "VM_LOG_LEVEL"
	EnvLogFormat = "VM_LOG_FORMAT"
	EnvLogSource = "VM_LOG_SOURCE"
	EnvLogFile   = "VM_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "VibeMatchGallery"
	keyringAPIKey  = "inference_api_key"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) {
	return keyring.Get(service, key)
}
func (k *osKeyring) Set(service, key, value string) error {
	return keyring.Set(service, key, value)
}
func (k *osKeyring) Delete(service, key string) error {
	return keyring.Delete(service, key)
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VibeMatchGallery")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VibeMatchGallery")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "vibematch")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides. It also loads the inference API key from the keyring
// (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	// API key from keyring
	key, _ := tokenStore.Get(keyringService, keyringAPIKey)
	return cfg, key, nil
}

// Save writes the user config YAML and persists the API key into the OS keyring (if non-empty).
func Save(cfg AppConfig, apiKey string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if apiKey != "" {
		if err := tokenStore.Set(keyringService, keyringAPIKey, apiKey); err != nil {
			return err
		}
	}
	return nil
}

// ForgetAPIKey removes the stored inference API key from the keyring.
func ForgetAPIKey() error {
	return tokenStore.Delete(keyringService, keyringAPIKey)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.Library.Root) != "" {
		dst.Library.Root = strings.TrimSpace(src.Library.Root)
	}
	if src.Inference.BaseURL != "" {
		dst.Inference.BaseURL = src.Inference.BaseURL
	}
	if src.Inference.Model != "" {
		dst.Inference.Model = src.Inference.Model
	}
	if src.Inference.TimeoutMs != 0 {
		dst.Inference.TimeoutMs = src.Inference.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvLibraryRoot)); v != "" {
		cfg.Library.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInferenceURL)); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInferenceModel)); v != "" {
		cfg.Inference.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInferenceTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inference.TimeoutMs = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "library.root":
		if os.Getenv(EnvLibraryRoot) != "" {
			return EnvLibraryRoot, true
		}
	case "inference.base_url":
		if os.Getenv(EnvInferenceURL) != "" {
			return EnvInferenceURL, true
		}
	case "inference.model":
		if os.Getenv(EnvInferenceModel) != "" {
			return EnvInferenceModel, true
		}
	case "inference.timeout_ms":
		if os.Getenv(EnvInferenceTimeoutMs) != "" {
			return EnvInferenceTimeoutMs, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.source":
		if os.Getenv(EnvLogSource) != "" {
			return EnvLogSource, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}

// EffectiveTimeout returns the inference timeout as a duration, falling back
// to the default when unset or nonsense.
func (c InferenceConfig) EffectiveTimeout() time.Duration {
	ms := c.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Inference.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}
