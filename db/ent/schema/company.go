package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"

	"github.com/google/uuid"
)

// Company is the tenant: one row per rug-cleaning business.
type Company struct{ ent.Schema }

func (Company) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "companies"},
	}
}

func (Company) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		field.String("name").NotEmpty(),
		field.String("default_currency").NotEmpty().MinLen(3).MaxLen(3).
			SchemaType(map[string]string{dialect.Postgres: "char(3)"}),
		field.Float("tax_rate").
			Default(0).
			SchemaType(map[string]string{dialect.Postgres: "numeric(6,4)"}),
		// price_book maps service codes to per-sqft rates; catalog
		// defaults apply for missing codes.
		field.JSON("price_book", json.RawMessage{}).
			Optional(),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Company) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("jobs", Job.Type),
		edge.To("rugs", Rug.Type),
		edge.To("photos", RugPhoto.Type),
		edge.To("analysis_jobs", AnalysisJob.Type),
		edge.To("estimates", Estimate.Type),
		edge.To("payments", Payment.Type),
	}
}
