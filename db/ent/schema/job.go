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

// Job is one customer engagement from intake through delivery.
type Job struct{ ent.Schema }

func (Job) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "jobs"},
	}
}

func (Job) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs
		field.UUID("company_id", uuid.UUID{}),
		field.String("client_name").NotEmpty(),
		field.String("client_email").Optional().Nillable(),
		field.String("client_phone").Optional().Nillable(),
		field.String("pickup_address").Optional().Nillable(),
		field.String("delivery_address").Optional().Nillable(),
		field.Time("delivery_window_start").Optional().Nillable(),
		field.Time("delivery_window_end").Optional().Nillable(),
		field.String("status").NotEmpty().
			Default(string(constants.JobStatusIntakeScheduled)).
			Validate(utils.EnumValidator(constants.JobStatusStrings()...)),
		// set when the estimate portal link is generated
		field.String("portal_token").Optional().Nillable().Unique(),
		field.Time("scheduled_pickup_at").Optional().Nillable(),
		field.String("notes").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Job) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY jobs -> ONE company (FK: jobs.company_id)
		edge.From("company", Company.Type).
			Ref("jobs").
			Field("company_id").
			Required().
			Unique(),
		// ONE job -> MANY rugs
		edge.To("rugs", Rug.Type),
		// ONE job -> MANY estimates
		edge.To("estimates", Estimate.Type),
		// ONE job -> MANY payments
		edge.To("payments", Payment.Type),
	}
}

func (Job) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id", "status", "created_at"),
		index.Fields("company_id", "created_at"),
	}
}
