package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"markdown fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nHope it helps!", `{"a": 1}`, true},
		{"surrounding prose", `The answer is {"a": {"b": 2}} as requested.`, `{"a": {"b": 2}}`, true},
		{"braces inside strings", `{"quote": "set {x} and }y{"}`, `{"quote": "set {x} and }y{"}`, true},
		{"escaped quotes", `{"q": "she said \"hi\""}`, `{"q": "she said \"hi\""}`, true},
		{"no object", "plain text only", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePICOComplete(t *testing.T) {
	raw := `{
		"population": "Patients with acute cerebellar stroke",
		"intervention": "Decompressive craniectomy",
		"comparator": "Conservative medical management",
		"outcomes": "90-day mortality, mRS scores",
		"timing": "2015-2020, 90-day follow-up",
		"study_type": "Randomized controlled trial"
	}`

	p, err := ParsePICO(raw)
	require.NoError(t, err)
	assert.Equal(t, "Patients with acute cerebellar stroke", p.Population)
	assert.Equal(t, "Decompressive craniectomy", p.Intervention)
	assert.Equal(t, "Conservative medical management", p.Comparator)
	assert.NotEmpty(t, p.Outcomes)
	assert.NotEmpty(t, p.Timing)
	assert.NotEmpty(t, p.StudyType)
}

func TestParsePICOMissingField(t *testing.T) {
	raw := `{
		"population": "Patients",
		"intervention": "Surgery",
		"comparator": "Placebo",
		"outcomes": "Mortality",
		"timing": "12 months"
	}`

	_, err := ParsePICO(raw)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "study_type")
}

func TestParsePICOEmptyField(t *testing.T) {
	raw := `{
		"population": "Patients",
		"intervention": "",
		"comparator": "Placebo",
		"outcomes": "Mortality",
		"timing": "12 months",
		"study_type": "RCT"
	}`

	_, err := ParsePICO(raw)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "intervention")
}

func TestParseFieldValidation(t *testing.T) {
	v, err := ParseFieldValidation(`{"is_supported": true, "quote": "57 patients", "confidence": 0.95}`)
	require.NoError(t, err)
	assert.True(t, v.IsSupported)
	assert.Contains(t, v.Quote, "57")
	assert.Greater(t, v.Confidence, 0.0)
	assert.LessOrEqual(t, v.Confidence, 1.0)
}

func TestParseFieldValidationClampsConfidence(t *testing.T) {
	v, err := ParseFieldValidation(`{"is_supported": false, "quote": "none", "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Confidence)

	v, err = ParseFieldValidation(`{"is_supported": false, "quote": "none", "confidence": -0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestParseFieldValidationWrongType(t *testing.T) {
	_, err := ParseFieldValidation(`{"is_supported": "yes", "quote": "x", "confidence": 0.5}`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "is_supported")
}

func TestParseMetadataFull(t *testing.T) {
	raw := `{
		"doi": "10.1001/neurosurgery.2020.12345",
		"pmid": "12345678",
		"journal": "Neurosurgery",
		"year": 2020
	}`

	m, err := ParseMetadata(raw)
	require.NoError(t, err)
	require.NotNil(t, m.DOI)
	assert.Equal(t, "10.1001/neurosurgery.2020.12345", *m.DOI)
	require.NotNil(t, m.PMID)
	assert.Equal(t, "12345678", *m.PMID)
	require.NotNil(t, m.Year)
	assert.Equal(t, 2020, *m.Year)
}

func TestParseMetadataNullsAreNil(t *testing.T) {
	m, err := ParseMetadata(`{"doi": null, "pmid": null, "journal": "Neurosurgery", "year": 2020}`)
	require.NoError(t, err)
	assert.Nil(t, m.DOI)
	assert.Nil(t, m.PMID)
	require.NotNil(t, m.Journal)
	assert.Equal(t, "Neurosurgery", *m.Journal)
}

func TestParseMetadataNumericPMID(t *testing.T) {
	m, err := ParseMetadata(`{"pmid": 27231976}`)
	require.NoError(t, err)
	require.NotNil(t, m.PMID)
	assert.Equal(t, "27231976", *m.PMID)
}

func TestParseTables(t *testing.T) {
	raw := `{
		"tables": [
			{
				"title": "Table 1: Baseline Characteristics",
				"description": "Patient demographics",
				"data": [
					["Characteristic", "Surgical (n=75)", "Conservative (n=75)"],
					["Mean age (years)", "65±10", "67±12"],
					["Male (%)", 55, 52]
				]
			}
		]
	}`

	ts, err := ParseTables(raw)
	require.NoError(t, err)
	require.Len(t, ts.Tables, 1)
	tbl := ts.Tables[0]
	assert.Equal(t, "Table 1: Baseline Characteristics", tbl.Title)
	require.Len(t, tbl.Data, 3)
	// Numeric cells are stringified, not rejected.
	assert.Equal(t, []string{"Male (%)", "55", "52"}, tbl.Data[2])
}

func TestParseTablesEmptyIsValid(t *testing.T) {
	ts, err := ParseTables(`{"tables": []}`)
	require.NoError(t, err)
	assert.Empty(t, ts.Tables)
}

func TestParseTablesMissingKey(t *testing.T) {
	_, err := ParseTables(`{"rows": []}`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseNoJSONAnywhere(t *testing.T) {
	_, err := ParsePICO("I could not find the requested information.")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "no JSON")
}

func TestValidateText(t *testing.T) {
	out, err := ValidateText("deep_analysis", "  a thorough critique of the methodology used in this trial  ", 50)
	require.NoError(t, err)
	assert.Equal(t, "a thorough critique of the methodology used in this trial", out)

	_, err = ValidateText("deep_analysis", "too short", 50)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}
