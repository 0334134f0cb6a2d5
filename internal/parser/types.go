package parser

import "fmt"

// PICO holds the six PICO-T fields extracted from a clinical paper.
// All six are non-empty on a successful parse.
type PICO struct {
	Population   string `json:"population"`
	Intervention string `json:"intervention"`
	Comparator   string `json:"comparator"`
	Outcomes     string `json:"outcomes"`
	Timing       string `json:"timing"`
	StudyType    string `json:"study_type"`
}

// Summary is a plain-text abstract of the document.
type Summary struct {
	Summary string `json:"summary"`
}

// FieldValidation is the verdict on whether a user-entered field value
// is supported by the document text. Confidence is clamped to [0,1].
type FieldValidation struct {
	IsSupported bool    `json:"is_supported"`
	Quote       string  `json:"quote"`
	Confidence  float64 `json:"confidence"`
}

// Metadata holds bibliographic identifiers. Absent values are nil, not
// errors — papers routinely lack a DOI or PMID.
type Metadata struct {
	DOI     *string `json:"doi"`
	PMID    *string `json:"pmid"`
	Journal *string `json:"journal"`
	Year    *int    `json:"year"`
}

// Table is one extracted table; Data is row-major with the header as
// the first row when the model found one.
type Table struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Data        [][]string `json:"data"`
}

// TableSet is the full set of tables found in a document. An empty set
// is a valid result.
type TableSet struct {
	Tables []Table `json:"tables"`
}

// ImageAnalysis is the free-text result of a vision call.
type ImageAnalysis struct {
	Analysis string `json:"analysis"`
}

// ParseError means the provider answered but the content was malformed
// or incomplete. It is terminal: the provider already spent the tokens,
// so this is never retried against another provider.
type ParseError struct {
	Operation string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %s", e.Operation, e.Reason)
}
