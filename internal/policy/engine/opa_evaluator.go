package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

const allowQuery = "data.workforce.authz.allow"

// DefaultPolicy lets the ADMIN and HR departments run every administrative action.
const DefaultPolicy = `package workforce.authz

default allow := false

privileged_departments := {"ADMIN", "HR"}

admin_actions := {"reset_password", "view_login_attempts", "force_logout", "view_sessions"}

allow if {
	admin_actions[input.action]
	privileged_departments[upper(input.subject.department)]
}
`

// OPAEvaluator evaluates authorization with an in-process OPA Rego query prepared once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

var _ Authorizer = (*OPAEvaluator)(nil)

// NewOPAEvaluator compiles modules, or DefaultPolicy when none are given.
// Every module must belong to package workforce.authz and define allow.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{DefaultPolicy}
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile compiles the Rego module at path. An empty path uses DefaultPolicy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if strings.TrimSpace(path) == "" {
		return NewOPAEvaluator(ctx)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// Allow evaluates the policy for subject and action.
func (e *OPAEvaluator) Allow(ctx context.Context, subject Subject, action Action) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(subject, action)))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", string(action)).Msg("policy: evaluation failed")
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck evaluates the prepared query on a minimal input. Does not touch the database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(Subject{}, ActionViewSessions)))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(subject Subject, action Action) map[string]interface{} {
	return map[string]interface{}{
		"action": string(action),
		"subject": map[string]interface{}{
			"employee_id": subject.EmployeeID,
			"email":       subject.Email,
			"department":  subject.Department,
			"role":        subject.Role,
		},
	}
}
