package domain

// LookupKind names a reference list harvested from initiatives.
type LookupKind string

const (
	LookupAITag                         LookupKind = "ai_tag"
	LookupAIPrinciple                   LookupKind = "ai_principle"
	LookupInitiativeType                LookupKind = "initiative_type"
	LookupCountry                       LookupKind = "country"
	LookupIntergovernmentalOrganisation LookupKind = "intergovernmental_organisation"
)

// Lookup is one {value, label} reference entry, unique per (Kind, Value).
type Lookup struct {
	Kind     LookupKind `db:"kind"`
	Value    int64      `db:"value"`
	Label    string     `db:"label"`
	SubLabel *string    `db:"sub_label"`
}
