package research

import (
	"context"
	"fmt"
	"strings"
)

const safetyPromptTemplate = `Analyze the following query and determine if it contains sexual content, explicit material, or inappropriate content.

Query: %s

Respond with ONLY "YES" if sexual content is detected, or "NO" if it's safe. Do not provide any explanation.`

// checkSafety classifies the query with a constrained yes/no call. Any
// provider failure or unrecognized output fails open: the query is treated
// as safe so legitimate research is never blocked by a flaky classifier.
func (o *Orchestrator) checkSafety(ctx context.Context, query string) SafetyResult {
	out, err := o.llm.Generate(ctx, o.model(""), fmt.Sprintf(safetyPromptTemplate, query))
	if err != nil {
		o.logger.Printf("safety check failed, allowing query: %v", err)
		return SafetyResult{Unsafe: false, Checked: false}
	}
	verdict := strings.ToUpper(strings.TrimSpace(out))
	return SafetyResult{Unsafe: verdict == "YES", Checked: true}
}
