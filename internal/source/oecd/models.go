package oecd

import (
	"github.com/goccy/go-json"
)

// APIResponse is one page of the policy-initiatives endpoint.
// Absent or mistyped pagination fields decode to nil and are defaulted.
type APIResponse struct {
	Data        []json.RawMessage `json:"data"`
	CurrentPage flexInt           `json:"currentPage"`
	LastPage    flexInt           `json:"lastPage"`
	Total       flexInt           `json:"total"`
	PerPage     flexInt           `json:"perPage"`
}

// Item is a single catalog entry as the API returns it. Scalar fields use
// lenient types so a value of an unexpected type becomes nil instead of
// rejecting the whole entry.
type Item struct {
	ID            flexInt64  `json:"id"`
	EnglishName   flexString `json:"englishName"`
	OriginalName  flexString `json:"originalName"`
	Slug          flexString `json:"slug"`
	Description   flexString `json:"description"`
	Website       flexString `json:"website"`
	Status        flexString `json:"status"`
	Category      flexString `json:"category"`
	ExtentBinding flexString `json:"extentBinding"`
	Joint         flexString `json:"joint"`
	StartYear     flexInt    `json:"startYear"`
	EndYear       flexInt    `json:"endYear"`

	ResponsibleOrganisation           flexString `json:"responsibleOrganisation"`
	ResponsibleOrganisationSI         flexString `json:"responsibleOrganisationSI"`
	ResponsibleOrganisationSILocation flexString `json:"responsibleOrganisationSILocation"`
	ResponsibleOrganisationSDLocation flexString `json:"responsibleOrganisationSDLocation"`

	Overview        flexString      `json:"overview"`
	ActionPlan      flexString      `json:"actionPlan"`
	Budget          json.RawMessage `json:"budget"`
	BudgetAvailable json.RawMessage `json:"budgetAvailable"`

	IsEvaluated                          json.RawMessage `json:"isEvaluated"`
	EvaluationBy                         flexString      `json:"evaluationBy"`
	OtherEvaluationBy                    flexString      `json:"otherEvaluationBy"`
	EvaluationURLs                       flexStrings     `json:"evaluationUrls"`
	EvaluationDescription                flexString      `json:"evaluationDescription"`
	IsEvaluationResultsPubliclyAvailable flexBool        `json:"isEvaluationResultsPubliclyAvailable"`

	RelevantURLs                      flexStrings     `json:"relevantUrls"`
	EngagementDescription             flexString      `json:"engagementDescription"`
	HasMonitoringMechanism            json.RawMessage `json:"hasMonitoringMechanism"`
	MonitoringMechanismDescription    flexString      `json:"monitoringMechanismDescription"`
	VideoURL                          flexString      `json:"videoUrl"`
	MoreInfos                         json.RawMessage `json:"moreInfos"`
	TrustworthyAIRelation             flexString      `json:"trustworthyAIRelation"`
	IntergovernmentalCoordination     flexString      `json:"intergovernmentalCoordination"`
	TrustworthyAIMechanismDescription flexString      `json:"trustworthyAIMechanismDescription"`
	OtherEngagementMechanism          flexString      `json:"otherEngagementMechanism"`
	OtherInitiativeType               flexString      `json:"otherInitiativeType"`

	CreatedByEmail   flexString `json:"createdByEmail"`
	CreatedByName    flexString `json:"createdByName"`
	UpdatedByEmail   flexString `json:"updatedByEmail"`
	UpdatedByName    flexString `json:"updatedByName"`
	PublishedByEmail flexString `json:"publishedByEmail"`
	PublishedByName  flexString `json:"publishedByName"`
	EditorialStatus  flexString `json:"editorialStatus"`
	CreatedAt        flexString `json:"createdAt"`
	UpdatedAt        flexString `json:"updatedAt"`

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
	GaiinCountryID                  flexInt64       `json:"gaiinCountryId"`
	IntergovernmentalOrganisationID json.RawMessage `json:"intergovernmentalOrganisationId"`

	IsWarningHighlight         flexBool `json:"isWarningHighlight"`
	IsDisabledHighlight        flexBool `json:"isDisabledHighlight"`
	IsInfoHighlight            flexBool `json:"isInfoHighlight"`
	IsEditable                 flexBool `json:"isEditable"`
	IsDeletable                flexBool `json:"isDeletable"`
	IsEditorialStatusUpdatable flexBool `json:"isEditorialStatusUpdatable"`
}
