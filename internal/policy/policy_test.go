package policy

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestBuilderSingleStatement(t *testing.T) {
	p, err := NewBuilder().
		AddDenyStatement().
		AddPrincipal("*").
		AddAction("GetObject").
		AddResource("my-bucket/*").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if len(p.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(p.Statements))
	}
	s := p.Statements[0]
	if s.Effect != EffectDeny {
		t.Errorf("expected Deny effect, got %q", s.Effect)
	}
	if got := s.Action.Values(); len(got) != 1 || got[0] != "s3:GetObject" {
		t.Errorf("action not prefixed: %v", got)
	}
	if got := s.Resource.Values(); len(got) != 1 || got[0] != "arn:aws:s3:::my-bucket/*" {
		t.Errorf("resource not prefixed: %v", got)
	}
}

func TestBuilderPrefixIsIdempotent(t *testing.T) {
	p, err := NewBuilder().
		AddAllowStatement().
		AddAction("s3:PutObject").
		AddResource("arn:aws:s3:::bucket").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	s := p.Statements[0]
	if got := s.Action.Values()[0]; got != "s3:PutObject" {
		t.Errorf("action was double-prefixed: %q", got)
	}
	if got := s.Resource.Values()[0]; got != "arn:aws:s3:::bucket" {
		t.Errorf("resource was double-prefixed: %q", got)
	}
}

func TestBuilderWithoutStatementFails(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder) *Builder
	}{
		{"principal", func(b *Builder) *Builder { return b.AddPrincipal("*") }},
		{"not_principal", func(b *Builder) *Builder { return b.AddNotPrincipal("*") }},
		{"action", func(b *Builder) *Builder { return b.AddAction("GetObject") }},
		{"not_action", func(b *Builder) *Builder { return b.AddNotAction("GetObject") }},
		{"resource", func(b *Builder) *Builder { return b.AddResource("*") }},
		{"not_resource", func(b *Builder) *Builder { return b.AddNotResource("*") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(NewBuilder()).Build()
			if !errors.Is(err, ErrNoStatement) {
				t.Errorf("expected ErrNoStatement, got %v", err)
			}
		})
	}
}

func TestScalarPromotesToList(t *testing.T) {
	p, err := NewBuilder().
		AddDenyStatement().
		AddPrincipal("*").
		AddAction("GetObject").
		AddAction("PutObject").
		AddResource("bucket/*").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	doc := string(data)

	// Two actions must marshal as an array, one resource as a bare string.
	if !strings.Contains(doc, `"Action":["s3:GetObject","s3:PutObject"]`) {
		t.Errorf("multi-value Action did not marshal as a list: %s", doc)
	}
	if !strings.Contains(doc, `"Resource":"arn:aws:s3:::bucket/*"`) {
		t.Errorf("single-value Resource did not marshal as a scalar: %s", doc)
	}
}

func TestPrincipalShape(t *testing.T) {
	p, err := NewBuilder().
		AddAllowStatement().
		AddPrincipal("alice").
		AddAction("*").
		AddResource("*").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	data, _ := json.Marshal(p)
	if !strings.Contains(string(data), `"Principal":{"AWS":"alice"}`) {
		t.Errorf("principal shape wrong: %s", data)
	}
}

func TestStatementOrderPreserved(t *testing.T) {
	p, err := NewBuilder().
		AddAllowStatement().AddPrincipal("*").AddAction("*").AddResource("bucket/*").
		AddDenyStatement().AddPrincipal("*").AddAction("*").AddResource("bucket/secret").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if p.Statements[0].Effect != EffectAllow || p.Statements[1].Effect != EffectDeny {
		t.Errorf("statement order not preserved: %v, %v",
			p.Statements[0].Effect, p.Statements[1].Effect)
	}
}

func TestFromJSONRoundTrip(t *testing.T) {
	original := DefaultTemplate()
	parsed, err := FromJSON([]byte(original.String()))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if parsed.Version != DefaultVersion {
		t.Errorf("version lost in round trip: %q", parsed.Version)
	}
	if len(parsed.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(parsed.Statements))
	}
	s := parsed.Statements[0]
	if s.Effect != EffectDeny {
		t.Errorf("effect lost in round trip: %q", s.Effect)
	}
	if got := s.Action.Values(); len(got) != 1 || got[0] != "s3:GetObject" {
		t.Errorf("action lost in round trip: %v", got)
	}
}

func TestFromJSONListValues(t *testing.T) {
	doc := `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Deny",
			"Principal": {"AWS": ["alice", "bob"]},
			"Action": "s3:*",
			"Resource": ["arn:aws:s3:::b/*", "arn:aws:s3:::b"]
		}]
	}`
	p, err := FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	s := p.Statements[0]
	if got := s.Principal.AWS.Values(); len(got) != 2 {
		t.Errorf("expected 2 principals, got %v", got)
	}
	if got := s.Resource.Values(); len(got) != 2 {
		t.Errorf("expected 2 resources, got %v", got)
	}
}

func TestFromJSONMissingVersionDefaults(t *testing.T) {
	p, err := FromJSON([]byte(`{"Statement": []}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if p.Version != DefaultVersion {
		t.Errorf("expected default version, got %q", p.Version)
	}
}

func TestBuilderExtendsExistingPolicy(t *testing.T) {
	base, err := NewBuilder().
		AddAllowStatement().AddPrincipal("*").AddAction("*").AddResource("b/*").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	extended, err := NewBuilderFor(base).
		AddDenyStatement().AddPrincipal("*").AddAction("*").AddResource("b/locked").
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(extended.Statements) != 2 {
		t.Errorf("expected 2 statements after extension, got %d", len(extended.Statements))
	}
}
