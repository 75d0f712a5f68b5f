package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify/model"
)

func sampleDigest() *model.Digest {
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 20, 14, 0, 0, 0, time.UTC)
	d := model.NewDigest(model.Recipient{UserID: 1, Username: "ada", Email: "ada@example.org"}, date)
	d.BillActions = []model.BillAction{{
		Bill:   model.BillSummary{ID: "ocd-bill/1", Identifier: "O2024-17", Description: "Parks budget", Slug: "o2024-17"},
		Action: model.ActionSummary{Description: "Referred to Finance", Date: &date, Order: 2},
	}}
	d.CommitteeEvents = []model.CommitteeEventUpdate{{
		Name:   "Committee on Finance",
		Slug:   "finance",
		Events: []model.EventSummary{{Slug: "finance-hearing", Name: "Budget hearing", StartDate: &start}},
	}}
	d.BillSearches = []model.BillSearchUpdate{{
		Params: model.SearchParams{Term: "parks"},
		Bills:  []model.BillSummary{{Identifier: "R2024-3", Slug: "r2024-3", Description: "Dog park"}},
	}}
	return d
}

func TestRenderer_Digest(t *testing.T) {
	r, err := NewRenderer(Site{Name: "Chicago Councilmatic", BaseURL: "https://councilmatic.example/"})
	require.NoError(t, err)

	out, err := r.Digest(sampleDigest())
	require.NoError(t, err)

	assert.Equal(t, "Chicago Councilmatic Updates!", out.Subject)
	assert.Contains(t, out.HTML, `href="https://councilmatic.example/legislation/o2024-17/"`)
	assert.Contains(t, out.HTML, "Referred to Finance")
	assert.Contains(t, out.HTML, "Mar 4, 2024")
	assert.Contains(t, out.HTML, "Budget hearing")
	assert.Contains(t, out.HTML, "/search/?q=parks")
	assert.NotContains(t, out.HTML, "People you follow")

	assert.Contains(t, out.Text, "- O2024-17 (https://councilmatic.example/legislation/o2024-17/): Referred to Finance (Mar 4, 2024)")
	assert.NotContains(t, out.Text, "<")
}

func TestRenderer_Activation(t *testing.T) {
	r, err := NewRenderer(Site{Name: "NYC Councilmatic", BaseURL: "https://nyc.example"})
	require.NoError(t, err)

	out, err := r.Activation(model.User{Username: "bob", Email: "bob@example.org"}, "abc-123")
	require.NoError(t, err)

	assert.Equal(t, "Activate your account with NYC Councilmatic", out.Subject)
	assert.Contains(t, out.HTML, "https://nyc.example/activation/abc-123/")
	assert.Contains(t, out.Text, "Hi bob,")
}

func TestPlainText(t *testing.T) {
	text, err := PlainText(`<html><head><style>p{}</style></head><body><p>One<br>Two</p><ul><li>A</li><li>B</li></ul></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, "One\nTwo\n- A\n- B", text)
}
