package oracle

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/runtimever"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	analysisSchemaFile = "schemas/analysis.schema.json"
	planSchemaFile     = "schemas/plan.schema.json"
	schemaBaseURL      = "https://hopper.schemas.local/"
)

var (
	compileOnce     sync.Once
	analysisSchema  *jsonschema.Schema
	planSchema      *jsonschema.Schema
	compileErr      error
	structValidator = validator.New()
)

func compileSchemas() error {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		for _, name := range []string{analysisSchemaFile, planSchemaFile} {
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				compileErr = err
				return
			}
			if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("schema load failed: %w", err)
				return
			}
		}
		if analysisSchema, compileErr = c.Compile(schemaBaseURL + analysisSchemaFile); compileErr != nil {
			return
		}
		planSchema, compileErr = c.Compile(schemaBaseURL + planSchemaFile)
	})
	return compileErr
}

// validateShape checks raw JSON against a compiled schema before it is
// decoded into Go types.
func validateShape(schema *jsonschema.Schema, raw string) error {
	var doc any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match contract: %w", err)
	}
	return nil
}

// DecodeAnalysis validates and decodes an analysis oracle response. A
// missing runtime version is filled from the resolver.
func DecodeAnalysis(raw string) (*plan.ProjectAnalysis, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	raw = CleanResponse(raw)
	if err := validateShape(analysisSchema, raw); err != nil {
		return nil, err
	}

	var analysis plan.ProjectAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if err := structValidator.Struct(&analysis); err != nil {
		return nil, fmt.Errorf("invalid analysis: %w", err)
	}

	if strings.TrimSpace(analysis.RuntimeVersion) == "" {
		analysis.RuntimeVersion = runtimever.Resolve(analysis.CurrentVersion)
	}
	if analysis.Dependencies == nil {
		analysis.Dependencies = []plan.Dependency{}
	}
	if analysis.Customizations == nil {
		analysis.Customizations = []string{}
	}
	return &analysis, nil
}

// planResponse mirrors the planning contract; risk level is parsed separately
// so casing from the model does not matter.
type planResponse struct {
	Steps             []plan.Step `json:"steps" validate:"required,min=1,dive"`
	EstimatedDuration string      `json:"estimatedDuration"`
	RiskLevel         string      `json:"riskLevel" validate:"required"`
}

// DecodePlan validates and decodes a planning oracle response into a
// prepared plan: every step PENDING with a runtime version.
func DecodePlan(raw string) (*plan.UpgradePlan, error) {
	if err := compileSchemas(); err != nil {
		return nil, err
	}
	raw = CleanResponse(raw)
	if err := validateShape(planSchema, raw); err != nil {
		return nil, err
	}

	var resp planResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := structValidator.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	risk, err := plan.ParseRiskLevel(resp.RiskLevel)
	if err != nil {
		return nil, err
	}

	p := &plan.UpgradePlan{
		Steps:             resp.Steps,
		EstimatedDuration: resp.EstimatedDuration,
		RiskLevel:         risk,
	}
	p.Prepare()
	return p, nil
}

// GeminiSchema converts an embedded JSON Schema into the subset accepted by
// the Gemini responseSchema field.
func GeminiSchema(name string) (map[string]any, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return toGeminiSchema(doc), nil
}

var geminiSchemaKeys = map[string]bool{
	"type": true, "properties": true, "items": true, "required": true,
	"enum": true, "description": true, "format": true, "nullable": true,
	"minimum": true, "maximum": true, "minItems": true, "maxItems": true,
}

func toGeminiSchema(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if !geminiSchemaKeys[k] {
			continue
		}
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				v = strings.ToUpper(s)
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				converted := make(map[string]any, len(props))
				for name, sub := range props {
					if subMap, ok := sub.(map[string]any); ok {
						converted[name] = toGeminiSchema(subMap)
					}
				}
				v = converted
			}
		case "items":
			if sub, ok := v.(map[string]any); ok {
				v = toGeminiSchema(sub)
			}
		}
		out[k] = v
	}
	return out
}
