package brain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

const defaultChatTimeout = 30 * time.Second

// OpenAIClient runs chat completions against an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client openaigo.Client
	model  string
}

// OpenAIOptions configures the OpenAI-backed client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}

	return &OpenAIClient{
		client: openaigo.NewClient(clientOpts...),
		model:  strings.TrimSpace(opts.Model),
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, len(req.Messages)+8)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openaigo.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openaigo.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, openaigo.SystemMessage(m.Content))
		default:
			messages = append(messages, openaigo.UserMessage(m.Content))
		}
	}
	if req.Continuation != nil {
		assistant, ok := req.Continuation.Assistant.(openaigo.ChatCompletionMessageParamUnion)
		if !ok {
			return ChatResponse{}, fmt.Errorf("continuation assistant token has type %T", req.Continuation.Assistant)
		}
		messages = append(messages, assistant)
		for _, res := range req.Continuation.Results {
			messages = append(messages, openaigo.ToolMessage(res.Content, res.CallID))
		}
	}

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openaigo.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			Parameters:  shared.FunctionParameters(t.Parameters),
		}))
	}
	if len(params.Tools) > 0 {
		switch req.ToolMode {
		case ToolModeRequired:
			params.ToolChoice = openaigo.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("required")}
		case ToolModeNone:
			params.ToolChoice = openaigo.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("none")}
		default:
			params.ToolChoice = openaigo.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("auto")}
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	out := ChatResponse{Text: strings.TrimSpace(msg.Content)}
	if len(msg.ToolCalls) > 0 {
		out.Assistant = msg.ToParam()
		for _, tc := range msg.ToolCalls {
			if strings.TrimSpace(tc.Type) != "function" {
				continue
			}
			call := tc.AsFunction()
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      strings.TrimSpace(call.Function.Name),
				Arguments: call.Function.Arguments,
			})
		}
	}
	return out, nil
}
