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

// EstimateItem is one service line on an estimate, tied to the rug it
// applies to. Clients may decline individual lines; fulfillment is
// tracked per line.
type EstimateItem struct{ ent.Schema }

func (EstimateItem) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "estimate_items"},
	}
}

func (EstimateItem) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// explicit FKs
		field.UUID("estimate_id", uuid.UUID{}),
		field.UUID("rug_id", uuid.UUID{}),
		field.String("service_code").NotEmpty().
			Validate(utils.EnumValidator(constants.ServiceCodeStrings()...)),
		field.String("description").NotEmpty(),
		field.Float("area_sqft").
			SchemaType(map[string]string{dialect.Postgres: "numeric(8,2)"}),
		field.Float("unit_price").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.Float("amount").
			SchemaType(map[string]string{dialect.Postgres: "numeric(12,2)"}),
		field.Bool("declined").Default(false),
		field.String("service_status").NotEmpty().
			Default(string(constants.ServiceItemPending)).
			Validate(utils.EnumValidator(constants.ServiceItemStatusStrings()...)),
		field.Time("completed_at").Optional().Nillable(),
		field.Time("created_at").Default(time.Now),
	}
}

func (EstimateItem) Edges() []ent.Edge {
	return []ent.Edge{
		// MANY items -> ONE estimate (FK: estimate_items.estimate_id)
		edge.From("estimate", Estimate.Type).
			Ref("items").
			Field("estimate_id").
			Required().
			Unique(),
		// MANY items -> ONE rug (FK: estimate_items.rug_id)
		edge.From("rug", Rug.Type).
			Ref("items").
			Field("rug_id").
			Required().
			Unique(),
	}
}

func (EstimateItem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("estimate_id"),
		index.Fields("rug_id"),
	}
}
