package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Initiative is the persisted shape of one OECD policy initiative.
// Nested relational structures are kept as opaque JSON.
type Initiative struct {
	APIID         int64   `json:"apiId"`
	EnglishName   *string `json:"englishName"`
	OriginalName  *string `json:"originalName"`
	Slug          *string `json:"slug"`
	Description   *string `json:"description"`
	Website       *string `json:"website"`
	Status        *string `json:"status"`
	Category      *string `json:"category"`
	ExtentBinding *string `json:"extentBinding"`
	Joint         *string `json:"joint"`
	StartYear     *int    `json:"startYear"`
	EndYear       *int    `json:"endYear"` // nil means ongoing

	ResponsibleOrganisation           *string `json:"responsibleOrganisation"`
	ResponsibleOrganisationSI         *string `json:"responsibleOrganisationSI"`
	ResponsibleOrganisationSILocation *string `json:"responsibleOrganisationSILocation"`
	ResponsibleOrganisationSDLocation *string `json:"responsibleOrganisationSDLocation"`

	Overview        *string         `json:"overview"`
	ActionPlan      *string         `json:"actionPlan"`
	Budget          json.RawMessage `json:"budget"`
	BudgetAvailable json.RawMessage `json:"budgetAvailable"`

	IsEvaluated                          json.RawMessage `json:"isEvaluated"`
	EvaluationBy                         *string         `json:"evaluationBy"`
	OtherEvaluationBy                    *string         `json:"otherEvaluationBy"`
	EvaluationURLs                       []string        `json:"evaluationUrls"`
	EvaluationDescription                *string         `json:"evaluationDescription"`
	IsEvaluationResultsPubliclyAvailable *bool           `json:"isEvaluationResultsPubliclyAvailable"`

	RelevantURLs                      []string        `json:"relevantUrls"`
	EngagementDescription             *string         `json:"engagementDescription"`
	HasMonitoringMechanism            json.RawMessage `json:"hasMonitoringMechanism"`
	MonitoringMechanismDescription    *string         `json:"monitoringMechanismDescription"`
	VideoURL                          *string         `json:"videoUrl"`
	MoreInfos                         json.RawMessage `json:"moreInfos"`
	TrustworthyAIRelation             *string         `json:"trustworthyAIRelation"`
	IntergovernmentalCoordination     *string         `json:"intergovernmentalCoordination"`
	TrustworthyAIMechanismDescription *string         `json:"trustworthyAIMechanismDescription"`
	OtherEngagementMechanism          *string         `json:"otherEngagementMechanism"`
	OtherInitiativeType               *string         `json:"otherInitiativeType"`

	CreatedByEmail   *string `json:"createdByEmail"`
	CreatedByName    *string `json:"createdByName"`
	UpdatedByEmail   *string `json:"updatedByEmail"`
	UpdatedByName    *string `json:"updatedByName"`
	PublishedByEmail *string `json:"publishedByEmail"`
	PublishedByName  *string `json:"publishedByName"`
	EditorialStatus  *string `json:"editorialStatus"`

	APICreatedAt *time.Time `json:"apiCreatedAt"`
	APIUpdatedAt *time.Time `json:"apiUpdatedAt"`

	GaiinCountry                    json.RawMessage `json:"gaiinCountry"`
	IntergovernmentalOrganisation   json.RawMessage `json:"intergovernmentalOrganisation"`
	Images                          json.RawMessage `json:"images"`
	SourceFiles                     json.RawMessage `json:"sourceFiles"`
	EvaluationFiles                 json.RawMessage `json:"evaluationFiles"`
	RelevantFiles                   json.RawMessage `json:"relevantFiles"`
	TargetSectors                   json.RawMessage `json:"targetSectors"`
	InitiativeType                  json.RawMessage `json:"initiativeType"`
	Principles                      json.RawMessage `json:"principles"`
	Tags                            json.RawMessage `json:"tags"`
	GaiinCountryID                  *int64          `json:"gaiinCountryId"`
	IntergovernmentalOrganisationID json.RawMessage `json:"intergovernmentalOrganisationId"`

	IsWarningHighlight         bool `json:"isWarningHighlight"`
	IsDisabledHighlight        bool `json:"isDisabledHighlight"`
	IsInfoHighlight            bool `json:"isInfoHighlight"`
	IsEditable                 bool `json:"isEditable"`
	IsDeletable                bool `json:"isDeletable"`
	IsEditorialStatusUpdatable bool `json:"isEditorialStatusUpdatable"`
}

// KeyKind selects which column an upsert matches on.
type KeyKind int

const (
	KeyNone KeyKind = iota
	KeySlug
	KeyAPIID
)

func (k KeyKind) String() string {
	switch k {
	case KeySlug:
		return "slug"
	case KeyAPIID:
		return "api_id"
	default:
		return "none"
	}
}

// UpsertKey is the match filter of one upsert: either BySlug or ByAPIID.
type UpsertKey struct {
	Kind  KeyKind
	Slug  string
	APIID int64
}

func BySlug(slug string) UpsertKey { return UpsertKey{Kind: KeySlug, Slug: slug} }

func ByAPIID(id int64) UpsertKey { return UpsertKey{Kind: KeyAPIID, APIID: id} }

// Key returns the filter for an initiative. A non-empty slug wins over the
// numeric id; records with neither yield KeyNone.
func (i *Initiative) Key() UpsertKey {
	if i.Slug != nil && *i.Slug != "" {
		return BySlug(*i.Slug)
	}
	if i.APIID > 0 {
		return ByAPIID(i.APIID)
	}
	return UpsertKey{Kind: KeyNone}
}

// UpsertOp replaces the stored record matching Key with Record, inserting it
// when nothing matches.
type UpsertOp struct {
	Key    UpsertKey
	Record Initiative
}
