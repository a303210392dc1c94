// Copyright 2025 Poiesic Systems
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


package rules

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// Parse reads and validates a TOML rule document.
// Unknown keys are rejected so misspelt rules do not silently disable a filter.
func Parse(r io.Reader) (RuleConfig, error) {
	var cfg RuleConfig
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return RuleConfig{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	if err := checkUndecoded(md); err != nil {
		return RuleConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RuleConfig{}, err
	}
	return cfg, nil
}

// LoadFile reads and validates a TOML rule file.
func LoadFile(path string) (RuleConfig, error) {
	var cfg RuleConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return RuleConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidRule, path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return RuleConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return RuleConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
}
