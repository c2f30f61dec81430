package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider over the Chat Completions streaming API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures NewOpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIProvider builds an OpenAIProvider; DefaultModel falls back to
// gpt-4o if unset.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), defaultModel: cfg.DefaultModel}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) buildRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		messages = append(messages, msg)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       firstNonEmpty(req.Model, p.defaultModel),
		Messages:    messages,
		Stream:      true,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			var params map[string]any
			_ = json.Unmarshal(t.Parameters, &params)
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  params,
				},
			})
		}
		chatReq.Tools = tools
	}
	if req.ToolChoice.Mode == "required" && req.ToolChoice.Name != "" {
		chatReq.ToolChoice = openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: req.ToolChoice.Name}}
	} else if req.ToolChoice.Mode != "" {
		chatReq.ToolChoice = req.ToolChoice.Mode
	}
	return chatReq
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	deltas, err := p.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return accumulate(deltas)
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, req Request) (<-chan StreamDelta, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llm: openai stream: %w", err)
	}

	out := make(chan StreamDelta, 32)
	go func() {
		defer close(out)
		defer stream.Close()

		toolNames := map[int]string{}
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err == io.EOF {
					return
				}
				out <- StreamDelta{Err: fmt.Errorf("llm: openai recv: %w", err), FinishReason: FinishError}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				out <- StreamDelta{ContentChunk: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				name := tc.Function.Name
				if name != "" {
					toolNames[idx] = name
				}
				out <- StreamDelta{ToolCallDelta: &ToolCallDelta{
					Index:             idx,
					ID:                tc.ID,
					Name:              name,
					ArgumentsFragment: tc.Function.Arguments,
				}}
			}
			if choice.FinishReason != "" {
				var usage Usage
				if resp.Usage != nil {
					usage = Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
				}
				out <- StreamDelta{FinishReason: mapOpenAIFinish(string(choice.FinishReason)), Usage: &usage}
			}
		}
	}()
	return out, nil
}

func mapOpenAIFinish(reason string) FinishReason {
	switch reason {
	case "tool_calls":
		return FinishToolCalls
	case "length":
		return FinishLength
	default:
		return FinishStop
	}
}
