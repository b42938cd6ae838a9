package helpers

import (
	"sort"
	"strings"
)

const defaultModel = "claude-sonnet-4-5-20250929"

var modelMapping = map[string]string{
	"claude-opus-4-5":            "claude-opus-4-5-20251101",
	"claude-haiku-4-5":           "claude-haiku-4-5-20251001",
	"claude-sonnet-4-5":          "claude-sonnet-4-5-20250929",
	"claude-sonnet-4-5-20250929": "claude-sonnet-4-5-20250929",
	"gpt-4o":                     "claude-sonnet-4-5-20250929",
	"gpt-4o-mini":                "claude-haiku-4-5-20251001",
	"gpt-4.1":                    "claude-sonnet-4-5-20250929",
	"gpt-4.1-mini":               "claude-haiku-4-5-20251001",
	"o3":                         "claude-opus-4-5-20251101",
}

// MapModel returns the upstream Claude model identifier for the provided
// alias. Unknown claude-prefixed names pass through untouched so new backend
// releases work without a mapping update; anything else falls back to the
// default model.
func MapModel(model string) string {
	name := strings.TrimSpace(model)
	if mapped, ok := modelMapping[name]; ok {
		return mapped
	}
	if strings.HasPrefix(name, "claude-") {
		return name
	}
	return defaultModel
}

// ListModels returns the alias catalog advertised to clients, sorted.
func ListModels() []string {
	models := make([]string, 0, len(modelMapping))
	for alias := range modelMapping {
		models = append(models, alias)
	}
	sort.Strings(models)
	return models
}
