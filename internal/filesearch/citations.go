package filesearch

// CitationsFromGrounding resolves grounding supports into citations.
// For each support the cited text comes from its segment; the page
// number is resolved by following the support's first chunk index into
// the chunk list, nil when the chunk exposes no page. Confidence is
// the fixed default — the provider has no per-citation signal.
func CitationsFromGrounding(g GroundingMetadata) []Citation {
	citations := make([]Citation, 0, len(g.Supports))
	for _, support := range g.Supports {
		var page *int
		if len(support.ChunkIndices) > 0 {
			idx := support.ChunkIndices[0]
			if idx >= 0 && idx < len(g.Chunks) {
				page = g.Chunks[idx].PageNumber
			}
		}
		citations = append(citations, Citation{
			Text:       support.Segment.Text,
			PageNumber: page,
			Confidence: DefaultCitationConfidence,
		})
	}
	return citations
}
