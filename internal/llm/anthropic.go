package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// AnthropicProvider implements Provider over the Anthropic Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures NewAnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider; DefaultModel falls back
// to claude-sonnet-4-20250514 if unset.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), defaultModel: cfg.DefaultModel}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) buildParams(req Request) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case "tool":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(firstNonEmpty(req.Model, p.defaultModel)),
		Messages:  messages,
		MaxTokens: int64(firstPositive(req.MaxTokens, 4096)),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			var schema anthropic.ToolInputSchemaParam
			_ = json.Unmarshal(t.Parameters, &schema)
			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{Name: t.Name, Description: anthropic.String(t.Description), InputSchema: schema},
			})
		}
		params.Tools = tools
	}
	return params, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// Chat implements the non-streaming half of the contract by draining
// ChatStream and accumulating its deltas.
func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	deltas, err := p.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return accumulate(deltas)
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req Request) (<-chan StreamDelta, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan StreamDelta, 32)
	go func() {
		defer close(out)
		var toolIndex = -1
		var toolID, toolName string
		var argsBuilder strings.Builder

		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					toolIndex = int(variant.Index)
					toolID = tu.ID
					toolName = tu.Name
					argsBuilder.Reset()
					out <- StreamDelta{ToolCallDelta: &ToolCallDelta{Index: toolIndex, ID: toolID, Name: toolName}}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamDelta{ContentChunk: delta.Text}
				case anthropic.InputJSONDelta:
					argsBuilder.WriteString(delta.PartialJSON)
					out <- StreamDelta{ToolCallDelta: &ToolCallDelta{Index: toolIndex, ArgumentsFragment: delta.PartialJSON}}
				case anthropic.ThinkingDelta:
					out <- StreamDelta{ReasoningChunk: delta.Thinking}
				}
			case anthropic.MessageDeltaEvent:
				if variant.Delta.StopReason != "" {
					usage := Usage{OutputTokens: int(variant.Usage.OutputTokens)}
					out <- StreamDelta{FinishReason: mapStopReason(string(variant.Delta.StopReason)), Usage: &usage}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamDelta{Err: fmt.Errorf("llm: anthropic stream: %w", err), FinishReason: FinishError}
		}
	}()
	return out, nil
}

func mapStopReason(reason string) FinishReason {
	switch reason {
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}
