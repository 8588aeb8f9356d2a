package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudfu/cloudfu/types"
)

const sizePolicy = `package cloudfu

import rego.v1

decision := "deny" if {
	input.profile.size == "m5.24xlarge"
}

reason := "instance size not allowed outside prod" if {
	decision == "deny"
}`

const imageWarnPolicy = `package cloudfu

import rego.v1

decision := "warn" if {
	startswith(input.profile.image, "ami-deprecated")
}

reason := "image is deprecated" if {
	decision == "warn"
}`

func testProfile(size, image string) types.Profile {
	return types.Profile{
		Provider: "p1",
		Size:     size,
		Image:    image,
		Tag:      types.Tag{Environment: "test", Role: "web"},
		NetworkInterfaces: []types.NetworkInterface{
			{DeviceIndex: 0, SubnetID: "subnet-1a", SecurityGroupID: []string{"sg-web"}},
		},
	}
}

func TestEngine_EvaluateDeny(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	if err := engine.LoadPolicy(ctx, "sizes", sizePolicy); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	verdict := engine.Evaluate(ctx, Input{
		Provider:    "p1",
		Environment: "test",
		Name:        "web_test_p1A",
		Profile:     testProfile("m5.24xlarge", "ami-123"),
	})

	if verdict.Decision != DecisionDeny {
		t.Errorf("Decision = %q, want deny", verdict.Decision)
	}
	if verdict.Reason == "" {
		t.Error("Expected a reason for the deny")
	}
	if len(verdict.Policies) != 1 || verdict.Policies[0] != "sizes" {
		t.Errorf("Policies = %v, want [sizes]", verdict.Policies)
	}
}

func TestEngine_EvaluateAllow(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	if err := engine.LoadPolicy(ctx, "sizes", sizePolicy); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	verdict := engine.Evaluate(ctx, Input{
		Name:    "web_test_p1A",
		Profile: testProfile("t2.medium", "ami-123"),
	})

	if verdict.Decision != DecisionAllow {
		t.Errorf("Decision = %q, want allow", verdict.Decision)
	}
}

func TestEngine_StrongestDecisionWins(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	if err := engine.LoadPolicy(ctx, "sizes", sizePolicy); err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadPolicy(ctx, "images", imageWarnPolicy); err != nil {
		t.Fatal(err)
	}

	verdict := engine.Evaluate(ctx, Input{
		Name:    "web_test_p1A",
		Profile: testProfile("m5.24xlarge", "ami-deprecated-1"),
	})

	if verdict.Decision != DecisionDeny {
		t.Errorf("Decision = %q, want deny to outrank warn", verdict.Decision)
	}
	if len(verdict.Policies) != 2 {
		t.Errorf("Expected both policies to match, got %v", verdict.Policies)
	}
}

func TestEngine_LoadPolicyBadRego(t *testing.T) {
	engine := NewEngine()

	err := engine.LoadPolicy(context.Background(), "broken", "this is not rego")
	if err == nil {
		t.Error("Expected compile error for invalid rego")
	}
}

func TestEngine_CheckFoldsVerdictsIntoWarnings(t *testing.T) {
	engine := NewEngine()
	ctx := context.Background()

	if err := engine.LoadPolicy(ctx, "sizes", sizePolicy); err != nil {
		t.Fatal(err)
	}

	res := &types.Result{
		Profiles: types.ProfileTree{
			"test": {
				"web_test_p1A": testProfile("m5.24xlarge", "ami-123"),
				"db_test_p1A":  testProfile("t2.medium", "ami-123"),
			},
		},
		Maps: types.MapTree{
			"test": {
				"web_test_p1A": {
					"web01.test.p1.example.com": {},
				},
			},
		},
	}

	warnings := engine.Check(ctx, res)

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Severity != types.SeverityError {
		t.Errorf("Severity = %q, want error for deny", w.Severity)
	}
	if w.Stage != "policy" {
		t.Errorf("Stage = %q, want policy", w.Stage)
	}
	if w.Environment != "test" || w.Provider != "p1" {
		t.Errorf("Warning scope = %+v", w)
	}
	if !warnings.HasErrors() {
		t.Error("Deny verdict should make the warning set carry errors")
	}
}

func TestEngine_CheckNoPoliciesIsQuiet(t *testing.T) {
	engine := NewEngine()

	res := &types.Result{
		Profiles: types.ProfileTree{
			"test": {"web_test_p1A": testProfile("m5.24xlarge", "ami-123")},
		},
	}

	if warnings := engine.Check(context.Background(), res); warnings != nil {
		t.Errorf("Expected no warnings without policies, got %v", warnings)
	}
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "sizes.rego"), []byte(sizePolicy), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0600); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine()
	loader := NewLoader(dir, engine)

	if err := loader.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if engine.PolicyCount() != 1 {
		t.Errorf("PolicyCount = %d, want 1", engine.PolicyCount())
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	engine := NewEngine()
	loader := NewLoader("/nonexistent/policies", engine)

	if err := loader.LoadAll(context.Background()); err == nil {
		t.Error("Expected error for missing policy directory")
	}
}
