package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rentatutor/rentatutor/internal/llm/prompts"
	"github.com/rentatutor/rentatutor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// replyResult is the JSON object the model answers with.
type replyResult struct {
	Reply string `json:"reply"`
}

// Client wraps an OpenAI-compatible API client and plays the tutor side
// of a live session.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. The reply templates must already be loaded
// with prompts.Load.
func New(baseURL, apiKey, modelName string, variant prompts.Variant) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: variant,
	}
}

// Reply asks the model for the tutor's next chat message.
func (c *Client) Reply(ctx context.Context, desc model.SessionDescriptor, history []model.ChatMessage) (string, error) {
	systemPrompt, err := prompts.BuildReplyPrompt(c.variant, desc, history)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if last := prompts.LastStudentMessage(history); last != "" {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: "<student-message>" + last + "</student-message>",
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMsgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var result replyResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		return "", fmt.Errorf("LLM returned an empty reply")
	}
	return reply, nil
}
