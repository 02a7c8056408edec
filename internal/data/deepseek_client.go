package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

const (
	defaultDeepSeekURL         = "https://api.deepseek.com"
	defaultDeepSeekModel       = "deepseek-chat"
	defaultDeepSeekTemperature = 0.3
	defaultDeepSeekMaxTokens   = 4000
	defaultDeepSeekTimeout     = 60 * time.Second
)

// deepseekGenerator OpenAI 兼容的 chat completions 客户端
type deepseekGenerator struct {
	client *khttp.Client
	prefix string
	conf   conf.AI_DeepSeek
	log    *log.Helper
}

// NewDeepSeekGenerator 创建 AI 生成客户端（返回 biz.Generator 接口）
func NewDeepSeekGenerator(c *conf.AI, logger log.Logger) (biz.Generator, error) {
	helper := log.NewHelper(logger)
	var dc conf.AI_DeepSeek
	if c != nil && c.Deepseek != nil {
		dc = *c.Deepseek
	}
	if dc.BaseUrl == "" {
		dc.BaseUrl = defaultDeepSeekURL
	}
	if dc.Model == "" {
		dc.Model = defaultDeepSeekModel
	}
	if dc.Temperature <= 0 {
		dc.Temperature = defaultDeepSeekTemperature
	}
	if dc.MaxTokens <= 0 {
		dc.MaxTokens = defaultDeepSeekMaxTokens
	}
	if dc.ApiKey == "" {
		helper.Warn("deepseek api_key is not configured, feature calls will fail")
	}

	u, err := url.Parse(dc.BaseUrl)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid deepseek base_url %q", dc.BaseUrl)
	}
	timeout := dc.Timeout.AsDuration()
	if timeout <= 0 {
		timeout = defaultDeepSeekTimeout
	}

	client, err := khttp.NewClient(context.Background(),
		khttp.WithEndpoint(u.Scheme+"://"+u.Host),
		khttp.WithTimeout(timeout),
		khttp.WithMiddleware(apiKeyAuth(dc.ApiKey)),
		khttp.WithErrorDecoder(decodeDeepSeekError),
	)
	if err != nil {
		return nil, fmt.Errorf("init deepseek client: %w", err)
	}
	return &deepseekGenerator{
		client: client,
		prefix: strings.TrimRight(u.Path, "/"),
		conf:   dc,
		log:    helper,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatCompletionReply struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate 发送 system + user 两条消息，返回第一条候选内容
func (g *deepseekGenerator) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	req := &chatCompletionRequest{
		Model:       g.conf.Model,
		Temperature: g.conf.Temperature,
		MaxTokens:   g.conf.MaxTokens,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var reply chatCompletionReply
	if err := g.client.Invoke(ctx, http.MethodPost, g.prefix+"/chat/completions", req, &reply); err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}
	g.log.Debugf("DeepSeek completion: id=%s, promptTokens=%d, completionTokens=%d",
		reply.ID, reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	return reply.Choices[0].Message.Content, nil
}

// decodeDeepSeekError 解析 {"error":{"message":...}} 形式的错误响应
func decodeDeepSeekError(_ context.Context, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	var reply struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &reply); err == nil && reply.Error.Message != "" {
		return fmt.Errorf("deepseek: status=%d, type=%s, message=%s", res.StatusCode, reply.Error.Type, reply.Error.Message)
	}
	return fmt.Errorf("deepseek: status=%d", res.StatusCode)
}

func apiKeyAuth(apiKey string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				tr.RequestHeader().Set("Authorization", "Bearer "+apiKey)
			}
			return handler(ctx, req)
		}
	}
}
