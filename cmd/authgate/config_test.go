// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/pkg/errutil"
)

const validConfig = `
storage:
  driver: memory
tokens:
  access_secret: ` + testAccessSecret + `
  refresh_secret: ` + testRefreshSecret + `
  access_ttl: 5m
`

func TestConfigSchema_PrintsJSONSchema(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])
	assert.Contains(t, doc["properties"], "tokens")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode string
	}{
		{name: "valid file", content: validConfig},
		{name: "unknown driver violates schema", content: "storage:\n  driver: sqlite\n", wantCode: "CONFIG_SCHEMA_VIOLATION"},
		{name: "malformed yaml", content: "tokens: [unclosed\n", wantCode: "CONFIG_INVALID_YAML"},
		{name: "missing secrets", content: "storage:\n  driver: memory\n", wantCode: "CONFIG_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := writeFile(t, dir, "config.yaml", tt.content)

			out, _, err := execute(t, "config", "validate", path)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Contains(t, out, "valid")
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestConfigValidate_SchemaErrorPrinted(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "config.yaml", "log:\n  format: xml\n")

	_, errOut, err := execute(t, "config", "validate", path)
	require.Error(t, err)
	assert.Contains(t, errOut, "format")
}

func TestConfigValidate_MissingFile(t *testing.T) {
	dir := isolate(t)
	_, _, err := execute(t, "config", "validate", dir+"/nope.yaml")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}

func TestConfigValidate_RequiresOneArg(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "config", "validate")
	require.Error(t, err)
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "config.yaml", validConfig)

	out, _, err := execute(t, "--config", path, "--log-level", "debug", "config", "show")
	require.NoError(t, err)

	assert.NotContains(t, out, testAccessSecret)
	assert.NotContains(t, out, testRefreshSecret)
	assert.Contains(t, out, "[redacted]")
	assert.Contains(t, out, "access_ttl: 5m0s")
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "driver: memory")
}

func TestConfigShow_WorksWithoutSecrets(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "3333")
	assert.Contains(t, out, "transport: cookie")
}
