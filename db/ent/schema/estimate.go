package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/db/ent/schema/utils"
)

// Estimate is a priced service proposal for a job. A job usually has
// one; regenerating before finalization replaces the draft.
type Estimate struct{ ent.Schema }

func (Estimate) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "estimates"},
	}
}

func (Estimate) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs
		field.UUID("job_id", uuid.UUID{}),
		field.UUID("company_id", uuid.UUID{}),
		field.String("status").NotEmpty().
			Default(string(constants.EstimateDraft)).
			Validate(utils.EnumValidator(constants.EstimateStatusStrings()...)),
		field.String("currency_code").NotEmpty().MinLen(3).MaxLen(3).
			SchemaType(map[string]string{dialect.Postgres: "char(3)"}),
		field.Float("subtotal").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.Float("tax").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.Float("total").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.Time("finalized_at").Optional().Nillable(),
		field.Time("sent_at").Optional().Nillable(),
		field.Time("decided_at").Optional().Nillable(),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Estimate) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY estimates -> ONE job (FK: estimates.job_id)
		edge.From("job", Job.Type).
			Ref("estimates").
			Field("job_id").
			Required().
			Unique(),
		// MANY estimates -> ONE company (FK: estimates.company_id)
		edge.From("company", Company.Type).
			Ref("estimates").
			Field("company_id").
			Required().
			Unique(),
		// ONE estimate -> MANY items
		edge.To("items", EstimateItem.Type),
	}
}

func (Estimate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "status"),
		index.Fields("company_id", "created_at"),
	}
}
