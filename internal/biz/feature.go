package biz

import (
	"context"
	"errors"
	"strings"
	"text/template"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

var errEmptyGeneration = errors.New("empty generation result")

// Generator AI 文本生成接口
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Feature 计费的 AI 功能
type Feature struct {
	ID             string
	Name           string
	Price          int64
	RequiredInputs []string
	SystemPrompt   string

	prompt      *template.Template
	description *template.Template
}

// Render 校验输入并生成提示词和扣费描述
func (f *Feature) Render(input map[string]string) (prompt, description string, err error) {
	values := make(map[string]string, len(input))
	for k, v := range input {
		values[k] = strings.TrimSpace(v)
	}
	for _, key := range f.RequiredInputs {
		if values[key] == "" {
			return "", "", creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, "input."+key+" is required")
		}
	}

	var b strings.Builder
	if err := f.prompt.Execute(&b, values); err != nil {
		return "", "", creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, err.Error())
	}
	prompt = b.String()

	b.Reset()
	if err := f.description.Execute(&b, values); err != nil {
		return "", "", creditErrors.Newf(creditErrors.ErrCodeInvalidArgument, err.Error())
	}
	return prompt, b.String(), nil
}

type featureDef struct {
	id, name     string
	price        int64
	inputs       []string
	systemPrompt string
	prompt       string
	description  string
}

var builtinFeatures = []featureDef{
	{
		id: "legal-qa", name: "Legal Q&A", price: 1, inputs: []string{"query"},
		systemPrompt: "You are a professional legal consultant. Answer accurately, cite the relevant statutes where possible, and recommend consulting a licensed lawyer for important matters.",
		prompt:       "User question: {{.query}}",
		description:  "AI legal Q&A",
	},
	{
		id: "explain", name: "Clause explanation", price: 1, inputs: []string{"clause"},
		systemPrompt: "You are a contract lawyer. Explain the clause in plain language and point out the rights, obligations and risks it creates.",
		prompt:       "Contract clause: {{.clause}}",
		description:  "Contract clause explanation",
	},
	{
		id: "dispute", name: "Dispute plan", price: 2, inputs: []string{"situation"},
		systemPrompt: "You are a dispute resolution expert. Analyse the situation and propose a step-by-step resolution plan including evidence to collect.",
		prompt:       "Dispute summary: {{.situation}}",
		description:  "Dispute plan generation",
	},
	{
		id: "document", name: "Legal document", price: 3, inputs: []string{"doc_type", "details"},
		systemPrompt: "You are a legal document drafter. Produce a complete, well-structured document in standard legal format.",
		prompt:       "Document type: {{.doc_type}}\nDetails: {{.details}}",
		description:  "Generate {{.doc_type}}",
	},
	{
		id: "contract", name: "Contract drafting", price: 3, inputs: []string{"contract_type", "requirements"},
		systemPrompt: "You are a contract drafting lawyer. Draft a complete contract that protects both parties and follows standard contract structure.",
		prompt:       "Contract type: {{.contract_type}}\nRequirements: {{.requirements}}",
		description:  "Generate {{.contract_type}}",
	},
}

// FeatureCatalog 功能查找表
type FeatureCatalog struct {
	features []*Feature
	index    map[string]*Feature
}

// NewFeatureCatalog 创建功能表，价格可由配置覆盖
func NewFeatureCatalog(c *CreditConfig) (*FeatureCatalog, error) {
	catalog := &FeatureCatalog{index: make(map[string]*Feature)}
	for _, def := range builtinFeatures {
		f := &Feature{
			ID:             def.id,
			Name:           def.name,
			Price:          def.price,
			RequiredInputs: def.inputs,
			SystemPrompt:   def.systemPrompt,
		}
		if p, ok := c.FeaturePrices[def.id]; ok && p > 0 {
			f.Price = p
		}
		var err error
		if f.prompt, err = template.New(def.id).Option("missingkey=zero").Parse(def.prompt); err != nil {
			return nil, err
		}
		if f.description, err = template.New(def.id + ".desc").Option("missingkey=zero").Parse(def.description); err != nil {
			return nil, err
		}
		catalog.features = append(catalog.features, f)
		catalog.index[f.ID] = f
	}
	return catalog, nil
}

// List 全部功能
func (c *FeatureCatalog) List() []*Feature {
	return c.features
}

// Get 按 ID 查找
func (c *FeatureCatalog) Get(id string) (*Feature, bool) {
	f, ok := c.index[id]
	return f, ok
}

// FeatureResult 功能调用结果
type FeatureResult struct {
	FeatureID   string
	Result      string
	CreditsUsed int64
	Balance     *Account
}

// FeatureUseCase 计费功能调用
type FeatureUseCase struct {
	catalog   *FeatureCatalog
	ledger    *LedgerUseCase
	generator Generator
	conf      *CreditConfig
	log       *log.Helper
	metrics   *metrics.CreditMetrics
}

// NewFeatureUseCase 创建功能调用 UseCase
func NewFeatureUseCase(catalog *FeatureCatalog, ledger *LedgerUseCase, generator Generator, conf *CreditConfig, logger log.Logger) *FeatureUseCase {
	return &FeatureUseCase{
		catalog:   catalog,
		ledger:    ledger,
		generator: generator,
		conf:      conf,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// ListFeatures 功能列表
func (uc *FeatureUseCase) ListFeatures() []*Feature {
	return uc.catalog.List()
}

// CallFeature 先扣费再调用 AI；生成失败是否退回由 RefundOnGenerationFailure 决定
func (uc *FeatureUseCase) CallFeature(ctx context.Context, userID, featureID string, input map[string]string) (*FeatureResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, creditErrors.New(creditErrors.ErrCodeInvalidUserID)
	}
	feature, ok := uc.catalog.Get(featureID)
	if !ok {
		return nil, creditErrors.New(creditErrors.ErrCodeFeatureNotFound)
	}
	prompt, description, err := feature.Render(input)
	if err != nil {
		return nil, err
	}

	debited, err := uc.ledger.Debit(ctx, userID, feature.Price, feature.ID, description)
	if err != nil {
		if creditErrors.Is(err, creditErrors.ErrCodeInsufficientCredits) {
			uc.count(feature.ID, constants.ResultInsufficient)
		} else {
			uc.count(feature.ID, constants.ResultError)
		}
		return nil, err
	}

	startTime := time.Now()
	text, genErr := uc.generator.Generate(ctx, prompt, feature.SystemPrompt)
	if uc.metrics != nil {
		uc.metrics.GenerationDuration.WithLabelValues(feature.ID).Observe(time.Since(startTime).Seconds())
	}
	if genErr == nil && strings.TrimSpace(text) == "" {
		genErr = errEmptyGeneration
	}
	if genErr != nil {
		uc.log.Errorf("Generate failed: userID=%s, feature=%s, error=%v", userID, feature.ID, genErr)
		uc.count(feature.ID, constants.ResultFailed)
		if uc.conf.RefundOnGenerationFailure {
			if _, err := uc.ledger.Refund(ctx, userID, feature.Price, feature.ID, "Refund: "+description); err != nil {
				uc.log.Errorf("Refund after generation failure failed: userID=%s, feature=%s, error=%v", userID, feature.ID, err)
				return nil, err
			}
		}
		return nil, creditErrors.Wrap(genErr, creditErrors.ErrCodeGenerationFailed)
	}

	uc.count(feature.ID, constants.ResultSuccess)
	return &FeatureResult{
		FeatureID:   feature.ID,
		Result:      text,
		CreditsUsed: feature.Price,
		Balance:     debited.Account,
	}, nil
}

func (uc *FeatureUseCase) count(featureID, result string) {
	if uc.metrics != nil {
		uc.metrics.FeatureCallTotal.WithLabelValues(featureID, result).Inc()
	}
}
