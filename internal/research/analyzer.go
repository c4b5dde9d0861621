package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const analysisPromptTemplate = `Analyze the following query and determine:
1. Does this query need images? (e.g., "show me pictures of", "images of", visual content)
2. Does this query need news? (e.g., "latest news", "recent updates", "current events")
3. Is this query clear and specific enough to research? (vs vague/ambiguous)

Query: %s

Respond with ONLY a JSON object in this exact format:
{
    "needs_images": true/false,
    "needs_news": true/false,
    "is_clear": true/false
}`

const decomposePromptTemplate = `Break the following research query into 3 to 5 focused sub-questions that together cover it completely.

Query: %s

Respond with ONLY a JSON array of strings, for example:
["sub-question 1", "sub-question 2", "sub-question 3"]`

// analyzeQuery classifies the query's needs. Advisory only: provider or
// parse failures fall back to the safe defaults.
func (o *Orchestrator) analyzeQuery(ctx context.Context, query string) AnalysisResult {
	fallback := AnalysisResult{NeedsImages: false, NeedsNews: false, IsClear: true}

	out, err := o.llm.Generate(ctx, o.model(""), fmt.Sprintf(analysisPromptTemplate, query))
	if err != nil {
		o.logger.Printf("query analysis failed, using defaults: %v", err)
		return fallback
	}
	payload, ok := extractJSON(out, "{", "}")
	if !ok {
		o.logger.Printf("query analysis returned no JSON, using defaults")
		return fallback
	}
	var parsed struct {
		NeedsImages *bool `json:"needs_images"`
		NeedsNews   *bool `json:"needs_news"`
		IsClear     *bool `json:"is_clear"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		o.logger.Printf("query analysis parse failed, using defaults: %v", err)
		return fallback
	}
	res := fallback
	if parsed.NeedsImages != nil {
		res.NeedsImages = *parsed.NeedsImages
	}
	if parsed.NeedsNews != nil {
		res.NeedsNews = *parsed.NeedsNews
	}
	if parsed.IsClear != nil {
		res.IsClear = *parsed.IsClear
	}
	return res
}

// decomposeQuery produces 3-5 sub-questions, or none on any failure.
func (o *Orchestrator) decomposeQuery(ctx context.Context, query string) []string {
	out, err := o.llm.Generate(ctx, o.model(""), fmt.Sprintf(decomposePromptTemplate, query))
	if err != nil {
		o.logger.Printf("query decomposition failed, continuing without sub-questions: %v", err)
		return nil
	}
	payload, ok := extractJSON(out, "[", "]")
	if !ok {
		return nil
	}
	var subs []string
	if err := json.Unmarshal([]byte(payload), &subs); err != nil {
		o.logger.Printf("sub-question parse failed, continuing without: %v", err)
		return nil
	}
	if len(subs) > 5 {
		subs = subs[:5]
	}
	return subs
}

// extractJSON cuts the first open..last close span out of model output that
// may carry prose around the JSON.
func extractJSON(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
