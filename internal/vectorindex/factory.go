// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorindex

import "fmt"

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem uses chromem-go for embedded vector storage. It is
	// the only provider the core ships (see ChromemProvider).
	ProviderChromem ProviderType = "chromem"

	// ProviderNone disables vector retrieval entirely.
	ProviderNone ProviderType = "none"
)

// Config selects and configures the vector provider.
type Config struct {
	Type    ProviderType   `yaml:"type,omitempty"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Type {
	case ProviderChromem, ProviderNone:
		return nil
	default:
		return fmt.Errorf("unknown vector provider type: %q", c.Type)
	}
}

// New creates a vector Provider from Config.
func New(cfg *Config) (Provider, error) {
	if cfg == nil || cfg.Type == ProviderNone {
		return NilProvider{}, nil
	}

	switch cfg.Type {
	case ProviderChromem, "":
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemProvider(chromemCfg)
	default:
		return nil, fmt.Errorf("unknown vector provider type: %q", cfg.Type)
	}
}
