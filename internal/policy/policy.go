// Package policy builds and parses S3 bucket policy documents.
// A policy is an ordered list of statements; order is significant to
// evaluation, so statements marshal in the order they were added.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultVersion is the policy language version stamped on new documents.
const DefaultVersion = "2012-10-17"

// ActionPrefix is prepended to action values that do not already carry it.
const ActionPrefix = "s3:"

// ResourcePrefix is prepended to resource values that do not already carry it.
const ResourcePrefix = "arn:aws:s3:::"

// Effect is the statement effect, Allow or Deny.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// ErrNoStatement is returned when a builder property method is called
// before any statement has been added.
var ErrNoStatement = errors.New("no statement to update")

// ValueSet holds one or more string values for a statement property.
// It marshals as a bare string while it holds a single value and as a
// JSON array once a second value is added, matching how S3 accepts
// scalar-or-list policy properties.
type ValueSet struct {
	values []string
}

// NewValueSet returns a ValueSet holding the given values.
func NewValueSet(values ...string) *ValueSet {
	return &ValueSet{values: values}
}

// Add appends a value to the set.
func (v *ValueSet) Add(value string) {
	v.values = append(v.values, value)
}

// Values returns a copy of the values in insertion order.
func (v *ValueSet) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}

// MarshalJSON emits a bare string for a single value and an array otherwise.
func (v ValueSet) MarshalJSON() ([]byte, error) {
	if len(v.values) == 1 {
		return json.Marshal(v.values[0])
	}
	return json.Marshal(v.values)
}

// UnmarshalJSON accepts either a bare string or an array of strings.
func (v *ValueSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		v.values = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("value is neither a string nor a string array: %w", err)
	}
	v.values = many
	return nil
}

// Principal is the Principal (or NotPrincipal) property of a statement.
// NooBaa, like AWS, nests account principals under an "AWS" key.
type Principal struct {
	AWS *ValueSet `json:"AWS"`
}

// Statement is a single policy statement. Pointer fields are omitted from
// the JSON document until a value is set on them.
type Statement struct {
	Effect       Effect     `json:"Effect"`
	Principal    *Principal `json:"Principal,omitempty"`
	NotPrincipal *Principal `json:"NotPrincipal,omitempty"`
	Action       *ValueSet  `json:"Action,omitempty"`
	NotAction    *ValueSet  `json:"NotAction,omitempty"`
	Resource     *ValueSet  `json:"Resource,omitempty"`
	NotResource  *ValueSet  `json:"NotResource,omitempty"`
}

// BucketPolicy is an S3 bucket policy document.
type BucketPolicy struct {
	Version    string       `json:"Version"`
	Statements []*Statement `json:"Statement"`
}

// New returns an empty policy document with the default version.
func New() *BucketPolicy {
	return &BucketPolicy{Version: DefaultVersion}
}

// FromJSON parses a policy document. A missing Version falls back to the
// default, mirroring how the server fills it in.
func FromJSON(data []byte) (*BucketPolicy, error) {
	p := &BucketPolicy{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse bucket policy: %w", err)
	}
	if p.Version == "" {
		p.Version = DefaultVersion
	}
	return p, nil
}

// String renders the policy as an indented JSON document, which is the
// form PutBucketPolicy expects.
func (p *BucketPolicy) String() string {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		// The document is built from plain strings; marshaling cannot
		// realistically fail. Return an empty document rather than panic.
		return "{}"
	}
	return string(data)
}

// DefaultTemplate returns the canonical valid policy used by tests that
// only need "some" well-formed document: a single statement denying
// GetObject on everything to everyone.
func DefaultTemplate() *BucketPolicy {
	p, err := NewBuilder().
		AddDenyStatement().
		AddPrincipal("*").
		AddAction("GetObject").
		AddResource("*").
		Build()
	if err != nil {
		// The fixed statement sequence above cannot trip a builder error.
		panic(err)
	}
	return p
}

// Builder assembles a BucketPolicy incrementally. Statement methods append
// a new statement; property methods mutate the most recently added one.
// The first error encountered sticks and is reported by Build.
type Builder struct {
	policy *BucketPolicy
	err    error
}

// NewBuilder returns a Builder over a fresh empty policy.
func NewBuilder() *Builder {
	return &Builder{policy: New()}
}

// NewBuilderFor returns a Builder that extends an existing policy.
func NewBuilderFor(p *BucketPolicy) *Builder {
	return &Builder{policy: p}
}

// AddAllowStatement appends a new statement with effect Allow.
func (b *Builder) AddAllowStatement() *Builder {
	b.policy.Statements = append(b.policy.Statements, &Statement{Effect: EffectAllow})
	return b
}

// AddDenyStatement appends a new statement with effect Deny.
func (b *Builder) AddDenyStatement() *Builder {
	b.policy.Statements = append(b.policy.Statements, &Statement{Effect: EffectDeny})
	return b
}

// AddPrincipal adds an account principal to the last statement.
func (b *Builder) AddPrincipal(principal string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.Principal == nil {
			s.Principal = &Principal{AWS: NewValueSet()}
		}
		s.Principal.AWS.Add(principal)
	})
}

// AddNotPrincipal adds a NotPrincipal account to the last statement.
func (b *Builder) AddNotPrincipal(principal string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.NotPrincipal == nil {
			s.NotPrincipal = &Principal{AWS: NewValueSet()}
		}
		s.NotPrincipal.AWS.Add(principal)
	})
}

// AddAction adds an action to the last statement, applying the s3: prefix
// when missing.
func (b *Builder) AddAction(action string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.Action == nil {
			s.Action = NewValueSet()
		}
		s.Action.Add(ensurePrefix(ActionPrefix, action))
	})
}

// AddNotAction adds a NotAction to the last statement.
func (b *Builder) AddNotAction(action string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.NotAction == nil {
			s.NotAction = NewValueSet()
		}
		s.NotAction.Add(ensurePrefix(ActionPrefix, action))
	})
}

// AddResource adds a resource to the last statement, applying the ARN
// prefix when missing.
func (b *Builder) AddResource(resource string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.Resource == nil {
			s.Resource = NewValueSet()
		}
		s.Resource.Add(ensurePrefix(ResourcePrefix, resource))
	})
}

// AddNotResource adds a NotResource to the last statement.
func (b *Builder) AddNotResource(resource string) *Builder {
	return b.updateLast(func(s *Statement) {
		if s.NotResource == nil {
			s.NotResource = NewValueSet()
		}
		s.NotResource.Add(ensurePrefix(ResourcePrefix, resource))
	})
}

// Build returns the assembled policy, or the first error a property
// method encountered.
func (b *Builder) Build() (*BucketPolicy, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.policy, nil
}

func (b *Builder) updateLast(update func(*Statement)) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.policy.Statements) == 0 {
		b.err = ErrNoStatement
		return b
	}
	update(b.policy.Statements[len(b.policy.Statements)-1])
	return b
}

// ensurePrefix prepends prefix unless value already starts with it, so a
// pre-prefixed value passes through unchanged.
func ensurePrefix(prefix, value string) string {
	if strings.HasPrefix(value, prefix) {
		return value
	}
	return prefix + value
}
