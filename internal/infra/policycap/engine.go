package policycap

import (
	"context"
	"errors"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"argus/internal/domain"
)

const defaultQuery = "data.argus.capability.allow"

// defaultPolicy grants the review capability to reviewers, the finalize
// capability to compliance officers, and everything to admins. A deployment
// overrides it with a bundle path.
const defaultPolicy = `package argus.capability

default allow = false

allow {
	input.capability == "review"
	input.roles[_] == "reviewer"
}

allow {
	input.capability == "finalize"
	input.roles[_] == "compliance_officer"
}

allow {
	input.roles[_] == "admin"
}
`

// Engine answers capability checks from a compiled rego policy. The bundle
// hash pins exactly which policy text produced each decision.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// NewDefaultEngine compiles the embedded policy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return newEngine(ctx, rego.Module("capability.rego", defaultPolicy), hashPolicySource(defaultPolicy))
}

// NewEngineFromBundlePath compiles a policy bundle from disk.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, rego.Load([]string{bundlePath}, nil), bundleHash)
}

func newEngine(ctx context.Context, source func(*rego.Rego), bundleHash string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

// Allow implements domain.CapabilityAuthorizer.
func (e *Engine) Allow(ctx context.Context, actor domain.Actor, capability string) (bool, error) {
	if e == nil {
		return false, errors.New("capability engine is nil")
	}
	input := map[string]any{
		"actor_id":   actor.ID,
		"roles":      actor.Roles,
		"capability": capability,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, errors.New("capability policy returned a non-boolean result")
	}
	return allowed, nil
}
