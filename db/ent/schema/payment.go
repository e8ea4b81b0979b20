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

// Payment is a gateway-reported payment against a job. Processing
// happens outside; this table records the outcome.
type Payment struct{ ent.Schema }

func (Payment) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "payments"},
	}
}

func (Payment) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs
		field.UUID("job_id", uuid.UUID{}),
		field.UUID("company_id", uuid.UUID{}),
		field.Float("amount").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.String("currency_code").NotEmpty().MinLen(3).MaxLen(3).
			SchemaType(map[string]string{dialect.Postgres: "char(3)"}),
		field.String("method").NotEmpty(),
		field.String("gateway_ref").Optional().Nillable(),
		field.String("status").NotEmpty().
			Default(string(constants.PaymentSucceeded)).
			Validate(utils.EnumValidator(constants.PaymentStatusStrings()...)),
		field.Time("received_at").Default(time.Now),
		field.Time("created_at").Default(time.Now),
	}
}

func (Payment) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY payments -> ONE job (FK: payments.job_id)
		edge.From("job", Job.Type).
			Ref("payments").
			Field("job_id").
			Required().
			Unique(),
		// MANY payments -> ONE company (FK: payments.company_id)
		edge.From("company", Company.Type).
			Ref("payments").
			Field("company_id").
			Required().
			Unique(),
	}
}

func (Payment) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "status"),
		index.Fields("company_id", "received_at"),
	}
}
