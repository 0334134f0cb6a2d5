package orchestrator

import "fmt"

// Prompt templates for the clinical extraction operations. Each one
// demands a strict output shape so the parser has something to hold
// the model to.

func picoPrompt(docText string) string {
	return fmt.Sprintf(`You are a clinical research assistant. Extract the PICO-T elements from the study below.

Respond with ONLY a JSON object with exactly these keys, all values non-empty strings:
{"population": "...", "intervention": "...", "comparator": "...", "outcomes": "...", "timing": "...", "study_type": "..."}

- population: who was studied (condition, setting, counts if stated)
- intervention: the treatment or exposure under evaluation
- comparator: the control or alternative arm
- outcomes: the primary and key secondary outcomes
- timing: enrollment period and follow-up duration
- study_type: the study design (e.g. randomized controlled trial, retrospective cohort)

Study text:
%s`, docText)
}

func summaryPrompt(docText string) string {
	return fmt.Sprintf(`Summarize the following clinical study in one concise paragraph for a practicing clinician. Cover the design, population, intervention, main results with effect sizes, and the authors' conclusion. Respond with the summary text only, no preamble.

Study text:
%s`, docText)
}

func validateFieldPrompt(fieldID, fieldValue, docText string) string {
	return fmt.Sprintf(`You are verifying a data extraction. Check whether the value %q entered for the field %q is supported by the document below.

Respond with ONLY a JSON object:
{"is_supported": true|false, "quote": "the exact passage that supports or contradicts the value", "confidence": 0.0-1.0}

The quote must be copied verbatim from the document. If the document never mentions anything relevant, set is_supported to false and quote the closest passage.

Document text:
%s`, fieldValue, fieldID, docText)
}

func metadataPrompt(docText string) string {
	return fmt.Sprintf(`Find the bibliographic identifiers of the article below.

Respond with ONLY a JSON object:
{"doi": "..." or null, "pmid": "..." or null, "journal": "..." or null, "year": 2020 or null}

Use null for any identifier the text does not contain. Do not guess or fabricate identifiers.

Article text:
%s`, docText)
}

func tablesPrompt(docText string) string {
	return fmt.Sprintf(`Transcribe every table present in the document below.

Respond with ONLY a JSON object:
{"tables": [{"title": "...", "description": "...", "data": [["header", ...], ["row", ...]]}]}

- data is row-major; the first row is the header when the table has one
- keep cell values exactly as printed, including units and percent signs
- if the document contains no tables, respond with {"tables": []}

Document text:
%s`, docText)
}

func deepAnalysisPrompt(userPrompt, docText string) string {
	return fmt.Sprintf(`You are an experienced clinical methodologist. %s

Ground every claim in the document below. Be specific about strengths, limitations and the applicability of the findings. Respond with the analysis text only.

Document text:
%s`, userPrompt, docText)
}

const defaultImagePrompt = `Describe this medical image for a clinician: modality, anatomical region, and any abnormal findings with their locations. Note explicitly if the image quality limits interpretation.`
