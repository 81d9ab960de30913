package oracle

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/provider"
	"github.com/felixgeelhaar/hopper/internal/retry"
)

// Models selects the model per oracle role. Empty fields use the provider default.
type Models struct {
	Analysis       string `mapstructure:"analysis" yaml:"analysis"`
	Planning       string `mapstructure:"planning" yaml:"planning"`
	Transformation string `mapstructure:"transformation" yaml:"transformation"`
	Preview        string `mapstructure:"preview" yaml:"preview"`
}

// transformMaxTokens caps transformation output so long files fail fast
// rather than arrive truncated.
const transformMaxTokens = 8000

// Gemini implements every oracle role on top of a text-generation provider.
// It makes exactly one provider call per invocation; retries belong to the caller.
type Gemini struct {
	client  provider.ProviderClient
	profile Profile
	models  Models
}

// NewGemini creates an oracle backed by client.
func NewGemini(client provider.ProviderClient, profile Profile, models Models) *Gemini {
	return &Gemini{client: client, profile: profile, models: models}
}

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, req AnalysisRequest) (*plan.ProjectAnalysis, error) {
	prompt, err := g.profile.ScannerPrompt(req)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	schema, err := GeminiSchema(analysisSchemaFile)
	if err != nil {
		return nil, retry.Fatal(err)
	}

	resp, err := g.client.Generate(ctx, &provider.GenerateRequest{
		Prompt:           prompt,
		Model:            g.models.Analysis,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Metadata:         map[string]string{"oracle": NameAnalysis},
	})
	if err != nil {
		return nil, err
	}

	analysis, err := DecodeAnalysis(resp.Content)
	if err != nil {
		return nil, retry.Fatal(errors.NewMalformedResponseError(NameAnalysis, err))
	}
	return analysis, nil
}

// Plan implements Planner.
func (g *Gemini) Plan(ctx context.Context, req PlanRequest) (*plan.UpgradePlan, error) {
	prompt, err := g.profile.StrategistPrompt(req)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	schema, err := GeminiSchema(planSchemaFile)
	if err != nil {
		return nil, retry.Fatal(err)
	}

	resp, err := g.client.Generate(ctx, &provider.GenerateRequest{
		Prompt:           prompt,
		Model:            g.models.Planning,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		Metadata:         map[string]string{"oracle": NamePlanning},
	})
	if err != nil {
		return nil, err
	}

	p, err := DecodePlan(resp.Content)
	if err != nil {
		return nil, retry.Fatal(errors.NewMalformedResponseError(NamePlanning, err))
	}
	return p, nil
}

// Transform implements Transformer. An empty response keeps the original
// content, and whitespace-only differences at the edges are not changes.
func (g *Gemini) Transform(ctx context.Context, req TransformRequest) (string, error) {
	prompt, err := g.profile.ExecutorPrompt(req)
	if err != nil {
		return "", retry.Fatal(err)
	}

	resp, err := g.client.Generate(ctx, &provider.GenerateRequest{
		Prompt:    prompt,
		Model:     g.models.Transformation,
		MaxTokens: transformMaxTokens,
		Metadata:  map[string]string{"oracle": NameTransformation, "path": req.Path},
	})
	if err != nil {
		return "", err
	}

	content := CleanResponse(resp.Content)
	if content == "" || content == strings.TrimSpace(req.Content) {
		return req.Content, nil
	}
	return content, nil
}

// Preview implements Previewer.
func (g *Gemini) Preview(ctx context.Context, req PreviewRequest) (string, error) {
	prompt, err := g.profile.SimulatorPrompt(req)
	if err != nil {
		return "", retry.Fatal(err)
	}

	resp, err := g.client.Generate(ctx, &provider.GenerateRequest{
		Prompt:   prompt,
		Model:    g.models.Preview,
		Metadata: map[string]string{"oracle": NamePreview},
	})
	if err != nil {
		return "", err
	}
	return CleanResponse(resp.Content), nil
}
