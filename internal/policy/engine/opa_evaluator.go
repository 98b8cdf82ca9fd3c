package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.driverprov.access.allow"

// Default Rego policy: an authenticated caller is always allowed; without a
// configured secret, unauthenticated calls are allowed outside production.
const defaultRegoPolicy = `package driverprov.access

default allow := false

allow if {
	input.authenticated
}

allow if {
	not input.token_configured
	input.environment != "production"
}
`

// OPAEvaluator evaluates the caller access policy using OPA Rego. The policy is
// compiled once and the prepared query reused for every request.
type OPAEvaluator struct {
	compiler *ast.Compiler
	query    rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy, or the default policy when policy is blank.
// The policy must define data.driverprov.access.allow.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler, query: query}, nil
}

// NewOPAEvaluatorFromFile reads the policy at path; an empty path selects the default policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read access policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// Allow evaluates the policy. An undefined allow decision denies.
func (e *OPAEvaluator) Allow(ctx context.Context, in AccessInput) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck verifies the loaded policy still evaluates to a decision for a
// minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	q := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(e.compiler),
		rego.Input(buildInput(AccessInput{Path: "/health", Method: "GET"})),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(in AccessInput) map[string]interface{} {
	return map[string]interface{}{
		"authenticated":    in.Authenticated,
		"token_configured": in.TokenConfigured,
		"environment":      in.Environment,
		"path":             in.Path,
		"method":           in.Method,
	}
}
