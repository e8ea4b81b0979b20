package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// AnalysisJob is one photo-analysis run over a rug.
type AnalysisJob struct{ ent.Schema }

func (AnalysisJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "analysis_jobs"},
	}
}

func (AnalysisJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		// explicit FKs
		field.UUID("rug_id", uuid.UUID{}),
		field.UUID("company_id", uuid.UUID{}),
		field.Time("started_at").Default(time.Now),
		field.Time("finished_at").Optional().Nillable(),
		field.String("status").Optional().Nillable(),
		field.String("error_message").Optional().Nillable(),
		field.Float32("confidence").Optional().Nillable(),
		field.Bool("needs_review").Default(false),
		field.JSON("result", json.RawMessage{}).
			Optional(),
		field.String("model_name").Optional().Nillable(),
		field.JSON("model_params", json.RawMessage{}).
			Optional(),
	}
}

func (AnalysisJob) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("rug", Rug.Type).
			Ref("analysis_jobs").
			Field("rug_id").
			Unique().
			Required(),
		edge.From("company", Company.Type).
			Ref("analysis_jobs").
			Field("company_id").
			Unique().
			Required(),
	}
}

func (AnalysisJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id", "status", "started_at"),
		index.Fields("rug_id"),
	}
}
