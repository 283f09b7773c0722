package oecd

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"initiative_syncer/internal/testutil"
)

func decodeItem(t *testing.T, raw string) Item {
	t.Helper()
	var item Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	return item
}

func TestToInitiative_FullItem(t *testing.T) {
	item := decodeItem(t, `{
		"id": 42,
		"englishName": "National AI Strategy",
		"slug": "  national-ai-strategy  ",
		"status": "active",
		"startYear": 2019,
		"endYear": 2025,
		"budget": {"amount": 1000},
		"tags": [{"id": 3, "name": "ethics"}],
		"evaluationUrls": ["https://example.org/eval"],
		"gaiinCountryId": 7,
		"createdAt": "2021-03-04T05:06:07.000Z",
		"updatedAt": "2022-01-02 03:04:05",
		"isEditable": true
	}`)

	rec := ToInitiative(item)

	assert.Equal(t, int64(42), rec.APIID)
	assert.Equal(t, testutil.Ptr("National AI Strategy"), rec.EnglishName)
	assert.Equal(t, testutil.Ptr("national-ai-strategy"), rec.Slug)
	assert.Equal(t, testutil.Ptr(2019), rec.StartYear)
	assert.Equal(t, testutil.Ptr(2025), rec.EndYear)
	assert.JSONEq(t, `{"amount": 1000}`, string(rec.Budget))
	assert.JSONEq(t, `[{"id": 3, "name": "ethics"}]`, string(rec.Tags))
	assert.Equal(t, []string{"https://example.org/eval"}, rec.EvaluationURLs)
	assert.Equal(t, testutil.Ptr(int64(7)), rec.GaiinCountryID)
	require.NotNil(t, rec.APICreatedAt)
	assert.True(t, rec.APICreatedAt.Equal(time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)))
	require.NotNil(t, rec.APIUpdatedAt)
	assert.True(t, rec.APIUpdatedAt.Equal(time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, rec.IsEditable)
	assert.False(t, rec.IsDeletable)
}

func TestToInitiative_Defaults(t *testing.T) {
	rec := ToInitiative(decodeItem(t, `{"id": 1}`))

	assert.Nil(t, rec.Slug)
	assert.Nil(t, rec.EndYear)
	assert.Nil(t, rec.Budget)
	assert.Nil(t, rec.APICreatedAt)
	assert.Equal(t, []string{}, rec.EvaluationURLs)
	assert.Equal(t, []string{}, rec.RelevantURLs)
	assert.Equal(t, "[]", string(rec.Images))
	assert.Equal(t, "[]", string(rec.Tags))
	assert.Equal(t, "[]", string(rec.Principles))
	assert.Nil(t, rec.InitiativeType)
	assert.False(t, rec.IsWarningHighlight)
}

func TestToInitiative_EndYearZeroIsOngoing(t *testing.T) {
	rec := ToInitiative(decodeItem(t, `{"id": 1, "endYear": 0}`))
	assert.Nil(t, rec.EndYear)
}

func TestToInitiative_SlugNormalisation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *string
	}{
		{name: "blank", raw: `{"id": 1, "slug": "   "}`, want: nil},
		{name: "null", raw: `{"id": 1, "slug": null}`, want: nil},
		{name: "numeric", raw: `{"id": 1, "slug": 1234}`, want: testutil.Ptr("1234")},
		{name: "trimmed", raw: `{"id": 1, "slug": "\tai-act\n"}`, want: testutil.Ptr("ai-act")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToInitiative(decodeItem(t, tt.raw))
			assert.Equal(t, tt.want, rec.Slug)
		})
	}
}

func TestToInitiative_InvalidTimestamp(t *testing.T) {
	rec := ToInitiative(decodeItem(t, `{"id": 1, "createdAt": "yesterday"}`))
	assert.Nil(t, rec.APICreatedAt)
}

func TestToInitiative_Idempotent(t *testing.T) {
	item := decodeItem(t, `{"id": 9, "slug": "x", "endYear": 0, "principles": [1, 2]}`)

	first := ToInitiative(item)
	second := ToInitiative(item)

	assert.Equal(t, first, second)
}
