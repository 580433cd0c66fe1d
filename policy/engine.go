// Package policy decides whether an upload may be processed.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the upload policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the upload policy evaluates.
type Input struct {
	Filename    string `json:"filename"`
	Extension   string `json:"extension"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	MaxSize     int64  `json:"max_size"`
}

// Result is the outcome of a policy evaluation.
type Result struct {
	Decision   string
	Violations []string
}

// Allowed reports whether the upload may proceed.
func (r Result) Allowed() bool {
	return r.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must declare package upload_policy.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.upload_policy"),
		rego.Module("upload_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy module from path, or the default policy
// when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks the upload policy.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Result, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{Decision: DecisionAllow}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Result{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	res := Result{Decision: DecisionAllow}
	if d, ok := doc["decision"].(string); ok {
		res.Decision = d
	}
	if vs, ok := doc["violations"].([]interface{}); ok {
		for _, v := range vs {
			if s, ok := v.(string); ok {
				res.Violations = append(res.Violations, s)
			}
		}
		sort.Strings(res.Violations)
	}
	return res, nil
}

// DefaultPolicy is the default policy content. The extension list mirrors the
// image formats YOLOv5 accepts as a source.
const DefaultPolicy = `
package upload_policy

import rego.v1

image_extensions := {".bmp", ".dng", ".jpeg", ".jpg", ".mpo", ".png", ".tif", ".tiff", ".webp", ".pfm"}

violations contains msg if {
	not input.extension in image_extensions
	msg := sprintf("unsupported file type %q", [input.extension])
}

violations contains msg if {
	input.max_size > 0
	input.size > input.max_size
	msg := sprintf("file is %d bytes, limit is %d", [input.size, input.max_size])
}

default decision := "allow"

decision := "block" if {
	count(violations) > 0
}
`
