package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"movetrack/internal/entities"
	"movetrack/internal/events/models"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

func noop(entities.Eventable, *models.Event) ([]models.Effect, error) { return nil, nil }

type RegistrySuite struct {
	suite.Suite
	reg *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupSuite() {
	reg, err := NewBuilder().
		Register(Definition{
			Name:       "MoveApprove",
			Eventables: []id.EventableKind{id.KindMove},
			Fields: []FieldSpec{
				{Name: "date", Type: TypeDate, Required: true},
				{Name: "create_in_nomis", Type: TypeBoolean},
			},
			Trigger: noop,
		}).
		Register(Definition{
			Name:       "PerCourtHearing",
			Eventables: []id.EventableKind{id.KindPersonEscortRecord},
			Fields: []FieldSpec{
				{Name: "court_outcome", Type: TypeString, Required: true, Enum: []string{"adjourned", "remanded"}},
				{Name: "court_listing_at", Type: TypeDateTime},
				{Name: "comments", Type: TypeString},
				{Name: "location_id", Type: TypeString, Relationship: "location"},
			},
			Rules: []Rule{{
				Field:   "comments",
				Expr:    "has(details.court_listing_at) || has(details.comments)",
				Message: "is required when court_listing_at is absent",
			}},
			Trigger: noop,
		}).
		Build()
	s.Require().NoError(err)
	s.reg = reg
}

func (s *RegistrySuite) TestResolve() {
	s.Run("accepts unqualified and qualified names", func() {
		v, err := s.reg.Resolve(id.KindMove, "MoveApprove")
		s.Require().NoError(err)
		s.Equal("event.MoveApprove", v.Name())
		s.Equal("MoveApprove", v.ShortName())

		_, err = s.reg.Resolve(id.KindMove, "event.MoveApprove")
		s.NoError(err)
	})

	s.Run("incompatible kind is an unknown variant", func() {
		_, err := s.reg.Resolve(id.KindJourney, "MoveApprove")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownVariant))
	})

	s.Run("unregistered name is an unknown variant", func() {
		_, err := s.reg.Resolve(id.KindMove, "MoveTeleport")
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownVariant))
	})

	s.Run("lists variants by kind", func() {
		s.Equal([]string{"MoveApprove"}, s.reg.ForKind(id.KindMove))
	})
}

func (s *RegistrySuite) TestValidate() {
	approve, err := s.reg.Resolve(id.KindMove, "MoveApprove")
	s.Require().NoError(err)

	s.Run("wrong date format names the date field", func() {
		_, err := approve.Validate(map[string]any{"date": "2019/01/01"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSchemaViolation))
		s.Contains(dErrors.FieldsOf(err), "date")
	})

	s.Run("reports every offending key", func() {
		_, err := approve.Validate(map[string]any{"create_in_nomis": "yes", "colour": "red"})
		fields := dErrors.FieldsOf(err)
		s.Equal("is required", fields["date"])
		s.Contains(fields, "create_in_nomis")
		s.Equal("is not a recognised field", fields["colour"])
	})

	s.Run("null optional values are dropped", func() {
		details, err := approve.Validate(map[string]any{"date": "2020-01-30", "create_in_nomis": nil})
		s.Require().NoError(err)
		s.Equal(map[string]any{"date": "2020-01-30"}, details)
	})

	hearing, err := s.reg.Resolve(id.KindPersonEscortRecord, "PerCourtHearing")
	s.Require().NoError(err)

	s.Run("cross-field rule", func() {
		_, err := hearing.Validate(map[string]any{"court_outcome": "adjourned"})
		s.Equal("is required when court_listing_at is absent", dErrors.FieldsOf(err)["comments"])

		_, err = hearing.Validate(map[string]any{
			"court_outcome":    "adjourned",
			"court_listing_at": "2024-03-01T10:00:00Z",
		})
		s.NoError(err)
	})

	s.Run("enum", func() {
		_, err := hearing.Validate(map[string]any{"court_outcome": "escaped", "comments": "x"})
		s.Contains(dErrors.FieldsOf(err), "court_outcome")
	})

	s.Run("relationship must be a uuid and is reported", func() {
		_, err := hearing.Validate(map[string]any{"court_outcome": "remanded", "comments": "x", "location_id": "nope"})
		s.Contains(dErrors.FieldsOf(err), "location_id")

		loc := id.NewEntityID().String()
		details, err := hearing.Validate(map[string]any{"court_outcome": "remanded", "comments": "x", "location_id": loc})
		s.Require().NoError(err)
		s.Equal([]Relationship{{Field: "location_id", Kind: "location", ID: loc}}, hearing.Relationships(details))
	})
}

func TestBuildFailsFast(t *testing.T) {
	cases := map[string]Definition{
		"no eventables": {Name: "X", Trigger: noop},
		"no trigger":    {Name: "X", Eventables: []id.EventableKind{id.KindMove}},
		"unknown field type": {Name: "X", Eventables: []id.EventableKind{id.KindMove}, Trigger: noop,
			Fields: []FieldSpec{{Name: "a", Type: "blob"}}},
		"enum on boolean": {Name: "X", Eventables: []id.EventableKind{id.KindMove}, Trigger: noop,
			Fields: []FieldSpec{{Name: "a", Type: TypeBoolean, Enum: []string{"x"}}}},
		"rule on missing field": {Name: "X", Eventables: []id.EventableKind{id.KindMove}, Trigger: noop,
			Rules: []Rule{{Field: "a", Expr: "true"}}},
		"non-bool rule": {Name: "X", Eventables: []id.EventableKind{id.KindMove}, Trigger: noop,
			Fields: []FieldSpec{{Name: "a", Type: TypeString}}, Rules: []Rule{{Field: "a", Expr: "1 + 1"}}},
		"bad kind": {Name: "X", Eventables: []id.EventableKind{"Tenant"}, Trigger: noop},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBuilder().Register(def).Build()
			assert.Error(t, err)
		})
	}

	t.Run("duplicate variant", func(t *testing.T) {
		def := Definition{Name: "X", Eventables: []id.EventableKind{id.KindMove}, Trigger: noop}
		_, err := NewBuilder().Register(def).Register(def).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registered twice")
	})
}
