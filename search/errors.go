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


package search

import (
	"errors"
	"fmt"

	"github.com/poiesic/rangefinder/core"
)

var (
	// ErrRepositoryRequired is returned when a catalog repository is not provided.
	ErrRepositoryRequired = errors.New("catalog repository required")

	// ErrInvalidConfig is returned for invalid engine options or discovery options.
	ErrInvalidConfig = errors.New("invalid discovery configuration")

	// ErrStrategySkipped is returned by a strategy that has nothing to contribute:
	// the query lacks the input it needs or its provider is unavailable.
	ErrStrategySkipped = errors.New("strategy skipped")

	// ErrRepositoryUnavailable is returned when every strategy that ran failed.
	ErrRepositoryUnavailable = errors.New("catalog repository unavailable")
)

// StrategyError reports a failed strategy. It is recorded in the discovery
// result and never fails a discovery on its own.
type StrategyError struct {
	Strategy core.StrategyName
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// ParseError reports a numeric specification that could not be parsed.
type ParseError struct {
	Attribute string
	Input     string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s spec %q: %s", e.Attribute, e.Input, e.Reason)
}

func skipped(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStrategySkipped, fmt.Sprintf(format, args...))
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
