package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

// RugPhoto references one photo in object storage. The bytes live in
// the storage bucket; only the path is recorded here.
type RugPhoto struct {
	ent.Schema
}

func (RugPhoto) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "rug_photos"},
	}
}

func (RugPhoto) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs so we can define a composite unique index
		field.UUID("rug_id", uuid.UUID{}),
		field.UUID("company_id", uuid.UUID{}),
		field.String("storage_path").NotEmpty(),
		field.String("content_type").NotEmpty(),
		field.Int("byte_size").NonNegative(),
		field.Time("uploaded_at").Default(time.Now),
	}
}

func (RugPhoto) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY photos -> ONE rug
		edge.From("rug", Rug.Type).
			Ref("photos").
			Field("rug_id").
			Required().
			Unique(),
		// MANY photos -> ONE company
		edge.From("company", Company.Type).
			Ref("photos").
			Field("company_id").
			Required().
			Unique(),
	}
}

func (RugPhoto) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("rug_id", "storage_path").Unique(),
		index.Fields("company_id", "uploaded_at"),
	}
}
