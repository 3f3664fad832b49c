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

package toolreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmmproject/agentos/internal/domain"
)

type fakeLoader struct {
	tools map[string]*domain.Tool
}

func (f *fakeLoader) LoadAll(ctx context.Context) ([]*domain.Tool, error) {
	var out []*domain.Tool
	for _, t := range f.tools {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeLoader) LoadByID(ctx context.Context, id string) (*domain.Tool, error) {
	return f.tools[id], nil
}

func sampleLoader() *fakeLoader {
	return &fakeLoader{tools: map[string]*domain.Tool{
		"echo-cli": {ID: "echo-cli", Name: "Echo CLI", Description: "Runs a trivial echo",
			Category: "system", Enabled: true, Kind: domain.ToolKindCLI, CheckCommand: "true"},
		"broken-cli": {ID: "broken-cli", Name: "Broken CLI", Category: "system",
			Enabled: true, Kind: domain.ToolKindCLI, CheckCommand: "false"},
		"weather-api": {ID: "weather-api", Name: "Weather API", Category: "external",
			Enabled: true, Kind: domain.ToolKindAPI, AuthEnvVar: "TOOLREG_TEST_WEATHER_KEY"},
		"fn-tool": {ID: "fn-tool", Name: "Function Tool", Category: "builtin",
			Enabled: true, Kind: domain.ToolKindFunction},
	}}
}

func TestLoadAllAndFind(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))
	require.Len(t, r.ListAll(), 4)

	tool, ok := r.FindByID("echo-cli")
	require.True(t, ok)
	require.Equal(t, domain.ToolKindCLI, tool.Kind)
}

func TestIsAvailableCLISucceedsOnZeroExit(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	ok, err := r.IsAvailable(context.Background(), "echo-cli")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsAvailableCLIFailsOnNonZeroExit(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	ok, err := r.IsAvailable(context.Background(), "broken-cli")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsAvailableAPIChecksEnvVar(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	ok, err := r.IsAvailable(context.Background(), "weather-api")
	require.NoError(t, err)
	require.False(t, ok)

	t.Setenv("TOOLREG_TEST_WEATHER_KEY", "secret")
	r.ClearAvailabilityCache()
	ok, err = r.IsAvailable(context.Background(), "weather-api")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsAvailableFunctionToolAlwaysAvailable(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	ok, err := r.IsAvailable(context.Background(), "fn-tool")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsAvailableCachesResult(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))

	ok1, err := r.IsAvailable(context.Background(), "broken-cli")
	require.NoError(t, err)
	require.False(t, ok1)

	tool, _ := r.FindByID("broken-cli")
	tool.CheckCommand = "true"

	ok2, err := r.IsAvailable(context.Background(), "broken-cli")
	require.NoError(t, err)
	require.False(t, ok2, "cached result should not re-probe until cleared")
}

func TestGetStats(t *testing.T) {
	r := New(sampleLoader())
	require.NoError(t, r.LoadAll(context.Background()))
	stats := r.GetStats()
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 4, stats.Enabled)
}
