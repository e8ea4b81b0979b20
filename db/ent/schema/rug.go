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
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// Rug is a single rug on a job, with dimensions captured at intake and
// analysis fields filled in after the photo analysis runs.
type Rug struct{ ent.Schema }

func (Rug) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "rugs"},
	}
}

func (Rug) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs
		field.UUID("job_id", uuid.UUID{}),
		field.UUID("company_id", uuid.UUID{}),
		field.Int("rug_no").Positive(),
		field.Float("length_ft").
			SchemaType(map[string]string{dialect.Postgres: "numeric(6,2)"}),
		field.Float("width_ft").
			SchemaType(map[string]string{dialect.Postgres: "numeric(6,2)"}),
		field.String("rug_type").NotEmpty(),
		field.String("notes").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		// client-generated id when the rug arrived through the offline
		// field queue; unique per company for idempotent re-pushes
		field.UUID("submission_id", uuid.UUID{}).Optional().Nillable(),
		field.String("material").Optional().Nillable(),
		field.String("condition_grade").Optional().Nillable(),
		field.Time("analyzed_at").Optional().Nillable(),
		field.JSON("analysis", json.RawMessage{}).
			Optional(),
		field.Time("created_at").Default(time.Now),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Rug) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY rugs -> ONE job (FK: rugs.job_id)
		edge.From("job", Job.Type).
			Ref("rugs").
			Field("job_id").
			Required().
			Unique(),
		// MANY rugs -> ONE company (FK: rugs.company_id)
		edge.From("company", Company.Type).
			Ref("rugs").
			Field("company_id").
			Required().
			Unique(),
		// ONE rug -> MANY photos
		edge.To("photos", RugPhoto.Type),
		// ONE rug -> MANY analysis jobs
		edge.To("analysis_jobs", AnalysisJob.Type),
		// ONE rug -> MANY estimate items
		edge.To("items", EstimateItem.Type),
	}
}

func (Rug) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "rug_no").Unique(),
		index.Fields("company_id", "submission_id").Unique(),
	}
}
