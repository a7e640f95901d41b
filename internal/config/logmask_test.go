// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.API.Token = "super-secret"
	cfg.API.BaseURL = "https://user:pw@courses.example.com/api"

	out, ok := MaskSecrets(cfg).(map[string]any)
	require.True(t, ok)

	api := out["api"].(map[string]any)
	assert.Equal(t, "***", api["token"])
	assert.Equal(t, "https://***@courses.example.com/api", api["base_url"])
	assert.Equal(t, "10s", api["timeout"])

	redis := out["cache"].(map[string]any)["redis"].(map[string]any)
	assert.Equal(t, "", redis["password"], "unset secrets stay visible as unset")

	assert.NotContains(t, out, "Version")
	assert.Equal(t, []any{"admin"}, out["ingest"].(map[string]any)["upload_roles"])
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "", MaskURL(""))
	assert.Equal(t, "redis:6379", MaskURL("redis:6379"))
	assert.Equal(t, "http://host/x", MaskURL("http://host/x"))
	assert.Equal(t, "redis://***@cache:6379/0", MaskURL("redis://default:pw@cache:6379/0"))
}

func TestIsSensitiveKey(t *testing.T) {
	for _, k := range []string{"token", "COURSEFLOW_TOKEN", "password", "api_key", "ClientSecret"} {
		assert.True(t, isSensitiveKey(k), k)
	}
	for _, k := range []string{"base_url", "auth_scheme", "addr"} {
		assert.False(t, isSensitiveKey(k), k)
	}
}
