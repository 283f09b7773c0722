package oecd

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"initiative_syncer/internal/domain"
)

var emptyArray = []byte("[]")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToInitiative maps a catalog item to its stored shape. It never fails:
// absent or mistyped values become nil, absent arrays become empty arrays.
func ToInitiative(item Item) domain.Initiative {
	return domain.Initiative{
		APIID:         derefInt64(item.ID.Value),
		EnglishName:   item.EnglishName.Value,
		OriginalName:  item.OriginalName.Value,
		Slug:          normalizeSlug(item.Slug.Value),
		Description:   item.Description.Value,
		Website:       item.Website.Value,
		Status:        item.Status.Value,
		Category:      item.Category.Value,
		ExtentBinding: item.ExtentBinding.Value,
		Joint:         item.Joint.Value,
		StartYear:     item.StartYear.Value,
		EndYear:       normalizeEndYear(item.EndYear.Value),

		ResponsibleOrganisation:           item.ResponsibleOrganisation.Value,
		ResponsibleOrganisationSI:         item.ResponsibleOrganisationSI.Value,
		ResponsibleOrganisationSILocation: item.ResponsibleOrganisationSILocation.Value,
		ResponsibleOrganisationSDLocation: item.ResponsibleOrganisationSDLocation.Value,

		Overview:        item.Overview.Value,
		ActionPlan:      item.ActionPlan.Value,
		Budget:          rawOrNil(item.Budget),
		BudgetAvailable: rawOrNil(item.BudgetAvailable),

		IsEvaluated:                          rawOrNil(item.IsEvaluated),
		EvaluationBy:                         item.EvaluationBy.Value,
		OtherEvaluationBy:                    item.OtherEvaluationBy.Value,
		EvaluationURLs:                       stringsOrEmpty(item.EvaluationURLs),
		EvaluationDescription:                item.EvaluationDescription.Value,
		IsEvaluationResultsPubliclyAvailable: item.IsEvaluationResultsPubliclyAvailable.Value,

		RelevantURLs:                      stringsOrEmpty(item.RelevantURLs),
		EngagementDescription:             item.EngagementDescription.Value,
		HasMonitoringMechanism:            rawOrNil(item.HasMonitoringMechanism),
		MonitoringMechanismDescription:    item.MonitoringMechanismDescription.Value,
		VideoURL:                          item.VideoURL.Value,
		MoreInfos:                         rawOrNil(item.MoreInfos),
		TrustworthyAIRelation:             item.TrustworthyAIRelation.Value,
		IntergovernmentalCoordination:     item.IntergovernmentalCoordination.Value,
		TrustworthyAIMechanismDescription: item.TrustworthyAIMechanismDescription.Value,
		OtherEngagementMechanism:          item.OtherEngagementMechanism.Value,
		OtherInitiativeType:               item.OtherInitiativeType.Value,

		CreatedByEmail:   item.CreatedByEmail.Value,
		CreatedByName:    item.CreatedByName.Value,
		UpdatedByEmail:   item.UpdatedByEmail.Value,
		UpdatedByName:    item.UpdatedByName.Value,
		PublishedByEmail: item.PublishedByEmail.Value,
		PublishedByName:  item.PublishedByName.Value,
		EditorialStatus:  item.EditorialStatus.Value,

		APICreatedAt: parseTime(item.CreatedAt.Value),
		APIUpdatedAt: parseTime(item.UpdatedAt.Value),

		GaiinCountry:                    rawOrNil(item.GaiinCountry),
		IntergovernmentalOrganisation:   rawOrNil(item.IntergovernmentalOrganisation),
		Images:                          rawOrEmptyArray(item.Images),
		SourceFiles:                     rawOrEmptyArray(item.SourceFiles),
		EvaluationFiles:                 rawOrEmptyArray(item.EvaluationFiles),
		RelevantFiles:                   rawOrEmptyArray(item.RelevantFiles),
		TargetSectors:                   rawOrEmptyArray(item.TargetSectors),
		InitiativeType:                  rawOrNil(item.InitiativeType),
		Principles:                      rawOrEmptyArray(item.Principles),
		Tags:                            rawOrEmptyArray(item.Tags),
		GaiinCountryID:                  item.GaiinCountryID.Value,
		IntergovernmentalOrganisationID: rawOrNil(item.IntergovernmentalOrganisationID),

		IsWarningHighlight:         derefBool(item.IsWarningHighlight.Value),
		IsDisabledHighlight:        derefBool(item.IsDisabledHighlight.Value),
		IsInfoHighlight:            derefBool(item.IsInfoHighlight.Value),
		IsEditable:                 derefBool(item.IsEditable.Value),
		IsDeletable:                derefBool(item.IsDeletable.Value),
		IsEditorialStatusUpdatable: derefBool(item.IsEditorialStatusUpdatable.Value),
	}
}

func normalizeSlug(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// normalizeEndYear treats 0 as "no end year".
func normalizeEndYear(y *int) *int {
	if y == nil || *y == 0 {
		return nil
	}
	v := *y
	return &v
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func rawOrNil(r json.RawMessage) []byte {
	if len(r) == 0 || string(r) == "null" {
		return nil
	}
	return append([]byte(nil), r...)
}

func rawOrEmptyArray(r json.RawMessage) []byte {
	if len(r) == 0 || string(r) == "null" {
		return append([]byte(nil), emptyArray...)
	}
	return append([]byte(nil), r...)
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool) bool {
	return v != nil && *v
}
