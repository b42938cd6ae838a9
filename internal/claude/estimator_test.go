package claude_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/claudegate/claudegate/internal/claude"
)

func TestEstimator_NilInput(t *testing.T) {
	est := &claude.Estimator{}
	assert.Equal(t, 0, est.EstimateValue(nil))
	assert.Equal(t, 0, est.EstimateRequest(nil))
	assert.Equal(t, 0, est.EstimateMessage(nil))
}

func TestEstimator_CharRatio(t *testing.T) {
	est := &claude.Estimator{}
	// 35 chars at 3.5 chars per token is exactly 10 tokens.
	assert.Equal(t, 10, est.EstimateValue(strings.Repeat("x", 35)))
	// Rounding is always up.
	assert.Equal(t, 1, est.EstimateValue("a"))
}

func TestEstimator_ImageChargedFlatCost(t *testing.T) {
	est := &claude.Estimator{}
	payload := strings.Repeat("A", 50000)
	req := &claude.Request{
		Model: "claude-sonnet-4-5",
		Messages: []claude.Message{
			{Role: claude.RoleUser, Content: []claude.ContentBlock{claude.NewImageBlock("image/png", payload)}},
		},
	}
	got := est.EstimateRequest(req)
	assert.GreaterOrEqual(t, got, claude.DefaultImageTokens)
	// Envelope overhead only, independent of payload length.
	assert.Less(t, got, claude.DefaultImageTokens+50)

	bigger := strings.Repeat("A", 500000)
	req.Messages[0].Content[0].Source.Data = bigger
	assert.Equal(t, got, est.EstimateRequest(req))
}

func TestEstimator_DataURIStripped(t *testing.T) {
	est := &claude.Estimator{}
	uri := "data:image/jpeg;base64," + strings.Repeat("Zm9v", 10000)
	plain := est.EstimateValue("see attached")
	withImage := est.EstimateValue("see attached " + uri)
	assert.GreaterOrEqual(t, withImage, claude.DefaultImageTokens)
	assert.Less(t, withImage, plain+claude.DefaultImageTokens+10)
}

func TestEstimator_RequestSumsAllSections(t *testing.T) {
	est := &claude.Estimator{}
	req := &claude.Request{
		Model:  "claude-sonnet-4-5",
		System: json.RawMessage(`"You are terse."`),
		Tools: []claude.Tool{
			{Name: "get_weather", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
		Messages: []claude.Message{
			{Role: claude.RoleUser, Content: []claude.ContentBlock{claude.NewTextBlock("hi")}},
		},
	}
	total := est.EstimateRequest(req)
	assert.Greater(t, total, est.EstimateMessages(req.Messages))
	assert.Greater(t, total, est.EstimateValue(req.System))
}

func TestEstimator_TunableConstants(t *testing.T) {
	est := &claude.Estimator{CharsPerToken: 7, ImageTokens: 100}
	assert.Equal(t, 5, est.EstimateValue(strings.Repeat("x", 35)))

	msg := claude.Message{Role: claude.RoleUser, Content: []claude.ContentBlock{claude.NewImageBlock("image/png", strings.Repeat("A", 1000))}}
	got := est.EstimateMessage(&msg)
	assert.GreaterOrEqual(t, got, 100)
	assert.Less(t, got, 130)
}
