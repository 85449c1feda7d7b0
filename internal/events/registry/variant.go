package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

type FieldType string

const (
	TypeString   FieldType = "string"
	TypeBoolean  FieldType = "boolean"
	TypeInteger  FieldType = "integer"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "date-time"
	// TypeStringList is an array of strings.
	TypeStringList FieldType = "string-list"
)

// FieldSpec declares one key of a variant's details.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Enum     []string
	// Relationship names the kind of entity the value refers to (e.g. "location").
	// The value must be that entity's id and must resolve before the trigger runs.
	Relationship string
}

// Rule is a cross-field CEL predicate over `details`. A false result is
// reported against Field.
type Rule struct {
	Field   string
	Expr    string
	Message string
}

// Relationship is a resolved relationship reference in a details map.
type Relationship struct {
	Field string
	Kind  string
	ID    string
}

type compiledField struct {
	spec   FieldSpec
	schema *jsonschema.Schema
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Variant is a compiled, immutable registry entry.
type Variant struct {
	name       string
	def        Definition
	eventables map[id.EventableKind]bool
	fields     map[string]*compiledField
	rules      []compiledRule
}

// Name is the qualified variant name.
func (v *Variant) Name() string { return v.name }

// ShortName is the variant name without namespace.
func (v *Variant) ShortName() string { return models.Unqualify(v.name) }

func (v *Variant) Trigger() Trigger { return v.def.Trigger }

func (v *Variant) Accepts(kind id.EventableKind) bool { return v.eventables[kind] }

func (v *Variant) Fields() []FieldSpec { return slices.Clone(v.def.Fields) }

// Validate checks details against the variant's schema and rules. It returns
// the canonical details map, or a schema_violation error whose fields name
// every offending key.
func (v *Variant) Validate(details map[string]any) (map[string]any, error) {
	canonical, err := Canonicalize(details)
	if err != nil {
		return nil, dErrors.WithFields(dErrors.CodeSchemaViolation, "details are not valid JSON",
			map[string]string{"details": err.Error()})
	}

	problems := map[string]string{}
	for key := range canonical {
		if _, ok := v.fields[key]; !ok {
			problems[key] = "is not a recognised field"
		}
	}
	for name, f := range v.fields {
		value, present := canonical[name]
		if !present || value == nil {
			delete(canonical, name)
			if f.spec.Required {
				problems[name] = "is required"
			}
			continue
		}
		if err := f.schema.Validate(value); err != nil {
			problems[name] = schemaMessage(err)
		}
	}
	if len(problems) == 0 {
		for _, r := range v.rules {
			ok, err := evalRule(r.program, canonical)
			if err != nil || !ok {
				problems[r.rule.Field] = r.rule.Message
			}
		}
	}
	if len(problems) > 0 {
		return nil, dErrors.WithFields(dErrors.CodeSchemaViolation,
			fmt.Sprintf("%s details are invalid", v.ShortName()), problems)
	}
	return canonical, nil
}

// Relationships lists relationship references present in validated details.
func (v *Variant) Relationships(details map[string]any) []Relationship {
	var out []Relationship
	for _, name := range slices.Sorted(maps.Keys(v.fields)) {
		f := v.fields[name]
		if f.spec.Relationship == "" {
			continue
		}
		if s, ok := details[name].(string); ok && s != "" {
			out = append(out, Relationship{Field: name, Kind: f.spec.Relationship, ID: s})
		}
	}
	return out
}

// Canonicalize round-trips details through RFC 8785 canonical JSON so that
// every value has its JSON-decoded Go type and equal payloads compare equal.
func Canonicalize(details map[string]any) (map[string]any, error) {
	if details == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(canonical, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func evalRule(prg cel.Program, details map[string]any) (bool, error) {
	out, _, err := prg.Eval(map[string]any{"details": details})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.Message
}
