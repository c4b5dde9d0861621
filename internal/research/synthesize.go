package research

import (
	"context"
	"fmt"
	"strings"
)

// reportSections is the fixed output structure the synthesizer is asked for.
var reportSections = []string{
	"Introduction",
	"Main Analysis",
	"Video Resources",
	"Related News",
	"Sources & References",
	"Conclusion",
}

// buildPrompt assembles the final synthesis prompt from the query, the
// sub-questions, the bounded context, and the media/news sections.
func buildPrompt(query string, subQuestions []string, contextText string, batch *RetrievalBatch) string {
	var b strings.Builder
	b.WriteString("You are a professional researcher. Based on the following information, provide a comprehensive and well-structured answer to the user's query.\n\n")
	fmt.Fprintf(&b, "User Query: %s\n\n", query)

	if len(subQuestions) > 0 {
		b.WriteString("Sub-questions to address:\n")
		for _, q := range subQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Research Context:\n%s\n\n", contextText)

	if len(batch.Videos) > 0 {
		b.WriteString("Video resources found:\n")
		for _, v := range batch.Videos {
			fmt.Fprintf(&b, "- %s (%s)", v.Title, v.URL)
			if v.Creator != "" {
				fmt.Fprintf(&b, " by %s", v.Creator)
			}
			b.WriteString("\n")
			if v.Transcript != "" {
				fmt.Fprintf(&b, "  Transcript excerpt: %s\n", truncate(v.Transcript, contextSnippetCap))
			}
		}
		b.WriteString("\n")
	}
	if len(batch.News) > 0 {
		b.WriteString("Related news found:\n")
		for _, n := range batch.News {
			fmt.Fprintf(&b, "- %s (%s): %s\n", n.Title, n.URL, truncate(n.Snippet, contextRawCap))
		}
		b.WriteString("\n")
	}
	if len(batch.Images) > 0 {
		b.WriteString("Images found:\n")
		for _, im := range batch.Images {
			fmt.Fprintf(&b, "- %s (%s)\n", im.Title, im.ImageURL)
		}
		b.WriteString("\n")
	}

	b.WriteString("Structure the answer with exactly these sections:\n")
	for _, s := range reportSections {
		fmt.Fprintf(&b, "## %s\n", s)
	}
	b.WriteString("\nProvide a detailed, accurate answer based on the research context. Include citations when relevant. If images or news were found, mention them appropriately.")
	return b.String()
}

// streamAnswer drives the streaming completion, forwarding every fragment in
// provider order through emit and returning the full concatenation. emit is
// the cooperative yield point; its error aborts consumption.
func (o *Orchestrator) streamAnswer(ctx context.Context, model, prompt string, emit func(string) error) (string, error) {
	var full strings.Builder
	err := o.llm.GenerateStream(ctx, model, prompt, func(chunk string) error {
		full.WriteString(chunk)
		return emit(chunk)
	})
	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}
