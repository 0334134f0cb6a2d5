package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExtractJSON locates the first complete JSON object inside raw model
// output, tolerating surrounding prose and markdown fencing. Returns
// false when no balanced object is found.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func decodeObject(operation, raw string) (map[string]json.RawMessage, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return nil, &ParseError{Operation: operation, Reason: "no JSON object in response"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, &ParseError{Operation: operation, Reason: "malformed JSON: " + err.Error()}
	}
	return fields, nil
}

func stringField(operation string, fields map[string]json.RawMessage, key string) (string, error) {
	rawVal, ok := fields[key]
	if !ok {
		return "", &ParseError{Operation: operation, Reason: "missing field " + key}
	}
	var s string
	if err := json.Unmarshal(rawVal, &s); err != nil {
		return "", &ParseError{Operation: operation, Reason: "field " + key + " is not a string"}
	}
	return s, nil
}

// ParsePICO validates the six-field PICO shape. Every field must be
// present and non-empty.
func ParsePICO(raw string) (PICO, error) {
	const op = "pico"
	fields, err := decodeObject(op, raw)
	if err != nil {
		return PICO{}, err
	}

	var p PICO
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"population", &p.Population},
		{"intervention", &p.Intervention},
		{"comparator", &p.Comparator},
		{"outcomes", &p.Outcomes},
		{"timing", &p.Timing},
		{"study_type", &p.StudyType},
	} {
		v, err := stringField(op, fields, f.key)
		if err != nil {
			return PICO{}, err
		}
		if strings.TrimSpace(v) == "" {
			return PICO{}, &ParseError{Operation: op, Reason: "empty field " + f.key}
		}
		*f.dst = v
	}
	return p, nil
}

// ParseFieldValidation validates the verdict shape and clamps the
// confidence score into [0,1].
func ParseFieldValidation(raw string) (FieldValidation, error) {
	const op = "validate_field"
	fields, err := decodeObject(op, raw)
	if err != nil {
		return FieldValidation{}, err
	}

	rawSupported, ok := fields["is_supported"]
	if !ok {
		return FieldValidation{}, &ParseError{Operation: op, Reason: "missing field is_supported"}
	}
	var v FieldValidation
	if err := json.Unmarshal(rawSupported, &v.IsSupported); err != nil {
		return FieldValidation{}, &ParseError{Operation: op, Reason: "field is_supported is not a boolean"}
	}

	v.Quote, err = stringField(op, fields, "quote")
	if err != nil {
		return FieldValidation{}, err
	}

	if rawConf, ok := fields["confidence"]; ok {
		if err := json.Unmarshal(rawConf, &v.Confidence); err != nil {
			return FieldValidation{}, &ParseError{Operation: op, Reason: "field confidence is not a number"}
		}
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v, nil
}

// ParseMetadata decodes bibliographic metadata. Every field is
// optional; null and absent both yield nil. PMID is tolerated as a
// JSON string or number since models emit both.
func ParseMetadata(raw string) (Metadata, error) {
	const op = "metadata"
	fields, err := decodeObject(op, raw)
	if err != nil {
		return Metadata{}, err
	}

	var m Metadata
	m.DOI = optionalString(fields["doi"])
	m.Journal = optionalString(fields["journal"])
	m.PMID = optionalStringOrNumber(fields["pmid"])

	if rawYear, ok := fields["year"]; ok && string(rawYear) != "null" {
		var year int
		if err := json.Unmarshal(rawYear, &year); err != nil {
			var s string
			if err := json.Unmarshal(rawYear, &s); err != nil {
				return Metadata{}, &ParseError{Operation: op, Reason: "field year is not a number"}
			}
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return Metadata{}, &ParseError{Operation: op, Reason: "field year is not a number"}
			}
			year = n
		}
		m.Year = &year
	}
	return m, nil
}

func optionalString(raw json.RawMessage) *string {
	if raw == nil || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func optionalStringOrNumber(raw json.RawMessage) *string {
	if raw == nil || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		s := n.String()
		return &s
	}
	return nil
}

// rawTable mirrors Table but tolerates scalar cells of any JSON type;
// models frequently emit bare numbers inside table rows.
type rawTable struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Data        [][]json.RawMessage `json:"data"`
}

// ParseTables decodes the table set. {"tables": []} is a valid empty
// result, not an error.
func ParseTables(raw string) (TableSet, error) {
	const op = "tables"
	fields, err := decodeObject(op, raw)
	if err != nil {
		return TableSet{}, err
	}

	rawTables, ok := fields["tables"]
	if !ok {
		return TableSet{}, &ParseError{Operation: op, Reason: "missing field tables"}
	}

	var decoded []rawTable
	if err := json.Unmarshal(rawTables, &decoded); err != nil {
		return TableSet{}, &ParseError{Operation: op, Reason: "field tables is not an array of tables"}
	}

	out := TableSet{Tables: make([]Table, 0, len(decoded))}
	for i, rt := range decoded {
		tbl := Table{Title: rt.Title, Description: rt.Description, Data: make([][]string, 0, len(rt.Data))}
		for _, row := range rt.Data {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				s, err := scalarToString(cell)
				if err != nil {
					return TableSet{}, &ParseError{Operation: op, Reason: fmt.Sprintf("table %d has a non-scalar cell", i)}
				}
				cells = append(cells, s)
			}
			tbl.Data = append(tbl.Data, cells)
		}
		out.Tables = append(out.Tables, tbl)
	}
	return out, nil
}

func scalarToString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	if string(raw) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("non-scalar cell")
}

// ValidateText applies the sanity checks for plain-text operations: the
// raw text is the result, it just has to be non-trivial.
func ValidateText(operation, text string, minLen int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minLen {
		return "", &ParseError{Operation: operation, Reason: fmt.Sprintf("response shorter than %d characters", minLen)}
	}
	return trimmed, nil
}
