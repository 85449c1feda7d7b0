package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
)

// Builder collects definitions and compiles them into a Registry.
type Builder struct {
	defs []Definition
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Register queues a definition. Problems are reported by Build.
func (b *Builder) Register(def Definition) *Builder {
	b.defs = append(b.defs, def)
	return b
}

// Build compiles every definition and fails on the first malformed set,
// reporting all problems found.
func (b *Builder) Build() (*Registry, error) {
	env, err := cel.NewEnv(cel.Variable("details", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("registry: cel env: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	reg := &Registry{variants: make(map[string]*Variant, len(b.defs))}
	var errs []error
	for _, def := range b.defs {
		v, err := compileVariant(compiler, env, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := reg.variants[v.name]; dup {
			errs = append(errs, fmt.Errorf("variant %s: registered twice", def.Name))
			continue
		}
		reg.variants[v.name] = v
		reg.names = append(reg.names, v.name)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("registry: %w", errors.Join(errs...))
	}
	slices.Sort(reg.names)
	return reg, nil
}

func compileVariant(compiler *jsonschema.Compiler, env *cel.Env, def Definition) (*Variant, error) {
	if def.Name == "" {
		return nil, errors.New("variant with empty name")
	}
	if len(def.Eventables) == 0 {
		return nil, fmt.Errorf("variant %s: no eventable kinds", def.Name)
	}
	if def.Trigger == nil {
		return nil, fmt.Errorf("variant %s: no trigger", def.Name)
	}

	v := &Variant{
		name:       models.Qualify(def.Name),
		def:        def,
		eventables: make(map[id.EventableKind]bool, len(def.Eventables)),
		fields:     make(map[string]*compiledField, len(def.Fields)),
	}
	for _, k := range def.Eventables {
		if _, err := id.ParseEventableKind(string(k)); err != nil {
			return nil, fmt.Errorf("variant %s: %w", def.Name, err)
		}
		v.eventables[k] = true
	}

	for _, f := range def.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("variant %s: field with empty name", def.Name)
		}
		if _, dup := v.fields[f.Name]; dup {
			return nil, fmt.Errorf("variant %s: field %s declared twice", def.Name, f.Name)
		}
		doc, err := f.schema()
		if err != nil {
			return nil, fmt.Errorf("variant %s: field %s: %w", def.Name, f.Name, err)
		}
		url := fmt.Sprintf("mem://variants/%s/%s.json", def.Name, f.Name)
		if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("variant %s: field %s: %w", def.Name, f.Name, err)
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("variant %s: field %s: %w", def.Name, f.Name, err)
		}
		v.fields[f.Name] = &compiledField{spec: f, schema: sch}
	}

	for _, rule := range def.Rules {
		if _, ok := v.fields[rule.Field]; !ok {
			return nil, fmt.Errorf("variant %s: rule targets undeclared field %s", def.Name, rule.Field)
		}
		ast, iss := env.Compile(rule.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("variant %s: rule %q: %w", def.Name, rule.Expr, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("variant %s: rule %q must evaluate to bool", def.Name, rule.Expr)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("variant %s: rule %q: %w", def.Name, rule.Expr, err)
		}
		v.rules = append(v.rules, compiledRule{rule: rule, program: prg})
	}
	return v, nil
}

func (f FieldSpec) schema() ([]byte, error) {
	doc := map[string]any{}
	switch f.Type {
	case TypeString:
		doc["type"] = "string"
	case TypeBoolean:
		doc["type"] = "boolean"
	case TypeInteger:
		doc["type"] = "integer"
	case TypeNumber:
		doc["type"] = "number"
	case TypeDate:
		doc["type"] = "string"
		doc["format"] = "date"
	case TypeDateTime:
		doc["type"] = "string"
		doc["format"] = "date-time"
	case TypeStringList:
		doc["type"] = "array"
		doc["items"] = map[string]any{"type": "string"}
	default:
		return nil, fmt.Errorf("unknown field type %q", f.Type)
	}
	if len(f.Enum) > 0 {
		if f.Type != TypeString {
			return nil, errors.New("enum is only supported on string fields")
		}
		doc["enum"] = f.Enum
	}
	if f.Relationship != "" {
		if f.Type != TypeString {
			return nil, errors.New("relationship fields must be strings")
		}
		doc["format"] = "uuid"
	}
	return json.Marshal(doc)
}
