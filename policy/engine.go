// Package policy gates expanded profiles through rego rules before they
// reach disk. Policies live in the cloudfu namespace and return decision,
// reason pairs; deny verdicts surface as error severity warnings.
package policy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudfu/cloudfu/telemetry"
	"github.com/cloudfu/cloudfu/types"
)

// Decisions a policy may return, weakest to strongest
const (
	DecisionAllow = "allow"
	DecisionWarn  = "warn"
	DecisionDeny  = "deny"
)

// Engine evaluates compiled rego policies against expanded profiles
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// Input is the evaluation payload for a single expanded profile
type Input struct {
	Provider    string        `json:"provider"`
	Environment string        `json:"environment"`
	Name        string        `json:"name"`
	Profile     types.Profile `json:"profile"`
	Hosts       []string      `json:"hosts,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Verdict is the aggregated outcome of all loaded policies for one input
type Verdict struct {
	Decision string   `json:"decision"`
	Reason   string   `json:"reason"`
	Policies []string `json:"policies"`
}

// NewEngine creates a policy engine with no policies loaded
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// PolicyCount returns the number of loaded policies
func (e *Engine) PolicyCount() int {
	return len(e.queries)
}

// LoadPolicy compiles a rego policy and adds it to the engine
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy_engine.load_policy",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.cloudfu"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		e.logger.WithContext(ctx).Error().
			Err(err).
			Str("policy_name", name).
			Msg("failed to compile policy")
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")

	return nil
}

// Evaluate runs all loaded policies against one profile and aggregates
// their verdicts, strongest decision wins
func (e *Engine) Evaluate(ctx context.Context, input Input) Verdict {
	ctx, span := e.tracer.Start(ctx, "policy_engine.evaluate",
		trace.WithAttributes(
			attribute.String("profile.name", input.Name),
			attribute.String("provider", input.Provider)))
	defer span.End()

	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now().UTC()
	}

	final := Verdict{Decision: DecisionAllow}
	var reasons []string

	for _, name := range slices.Sorted(maps.Keys(e.queries)) {
		verdict, err := e.evaluatePolicy(ctx, name, input)
		if err != nil {
			e.logger.WithContext(ctx).Error().
				Err(err).
				Str("policy_name", name).
				Str("profile", input.Name).
				Msg("policy evaluation failed")
			// An unevaluable policy cannot be allowed to pass silently
			verdict = Verdict{
				Decision: DecisionDeny,
				Reason:   fmt.Sprintf("policy %s failed to evaluate: %v", name, err),
			}
		}

		if verdict.Decision == "" {
			continue
		}

		if decisionRank(verdict.Decision) > decisionRank(final.Decision) {
			final.Decision = verdict.Decision
		}
		if verdict.Reason != "" {
			reasons = append(reasons, verdict.Reason)
		}
		final.Policies = append(final.Policies, name)

		if verdict.Decision != DecisionAllow {
			telemetry.RecordPolicyViolationEvent(span, name, input.Name, verdict.Decision, verdict.Reason)
		}
	}

	final.Reason = strings.Join(reasons, "; ")
	return final
}

// evaluatePolicy evaluates a single policy against the input
func (e *Engine) evaluatePolicy(ctx context.Context, name string, input Input) (Verdict, error) {
	query := e.queries[name]

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluation failed: %w", err)
	}
	if len(results) == 0 {
		return Verdict{}, nil
	}

	var verdict Verdict
	for _, res := range results {
		for key, value := range res.Bindings {
			bindVerdictField(key, value, &verdict)
		}
		if len(res.Expressions) > 0 {
			// OPA returns the cloudfu document as a raw map
			if doc, ok := res.Expressions[0].Value.(map[string]interface{}); ok {
				for key, value := range doc {
					bindVerdictField(key, value, &verdict)
				}
			}
		}
	}

	if verdict.Decision != "" && !validDecision(verdict.Decision) {
		return Verdict{}, fmt.Errorf("policy returned unknown decision %q", verdict.Decision)
	}
	return verdict, nil
}

func bindVerdictField(key string, value interface{}, verdict *Verdict) {
	str, ok := value.(string)
	if !ok {
		return
	}
	switch key {
	case "decision":
		verdict.Decision = str
	case "reason":
		verdict.Reason = str
	}
}

func decisionRank(decision string) int {
	switch decision {
	case DecisionDeny:
		return 3
	case DecisionWarn:
		return 2
	case DecisionAllow:
		return 1
	default:
		return 0
	}
}

func validDecision(decision string) bool {
	return decisionRank(decision) > 0
}

// Check evaluates every expanded profile in the result and folds non-allow
// verdicts into warnings. Deny verdicts carry error severity so a strict
// apply refuses to write them out.
func (e *Engine) Check(ctx context.Context, res *types.Result) types.Warnings {
	if len(e.queries) == 0 || res == nil {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "policy_engine.check")
	defer span.End()

	var warnings types.Warnings
	for _, ename := range slices.Sorted(maps.Keys(res.Profiles)) {
		profiles := res.Profiles[ename]
		for _, pname := range slices.Sorted(maps.Keys(profiles)) {
			profile := profiles[pname]

			verdict := e.Evaluate(ctx, Input{
				Provider:    profile.Provider,
				Environment: ename,
				Name:        pname,
				Profile:     profile,
				Hosts:       hostsFor(res, ename, pname),
			})
			if verdict.Decision == DecisionAllow {
				continue
			}

			severity := types.SeverityWarning
			if verdict.Decision == DecisionDeny {
				severity = types.SeverityError
			}
			warnings = append(warnings, types.Warning{
				Severity:    severity,
				Stage:       "policy",
				Provider:    profile.Provider,
				Environment: ename,
				Role:        profile.Tag.Role,
				Message: fmt.Sprintf("profile %q %s by %s: %s",
					pname, verdict.Decision, strings.Join(verdict.Policies, ", "), verdict.Reason),
			})
		}
	}

	e.logger.WithContext(ctx).Info().
		Int("profiles_flagged", len(warnings)).
		Int("loaded_policies", len(e.queries)).
		Msg("policy check complete")

	return warnings
}

// hostsFor lists the hostnames mapped to a profile, sorted
func hostsFor(res *types.Result, ename, pname string) []string {
	envMaps, ok := res.Maps[ename]
	if !ok {
		return nil
	}
	hosts, ok := envMaps[pname]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(hosts))
}
