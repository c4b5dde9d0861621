package research

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/deepresearch/internal/index"
	searchmodels "github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
)

// EventType discriminates the research stream events.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventAnswerChunk EventType = "answer_chunk"
	EventError       EventType = "error"
	EventResult      EventType = "result"
)

// Event is one element of the research stream. result and error are
// terminal; nothing follows them.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Chunk     string    `json:"chunk,omitempty"`
	Result    *Result   `json:"result,omitempty"`
}

// Result is the payload of the terminal result event.
type Result struct {
	Answer          string                   `json:"answer"`
	Sources         []string                 `json:"sources"`
	Images          []searchmodels.ImageItem `json:"images"`
	News            []searchmodels.NewsItem  `json:"news"`
	Videos          []VideoDetail            `json:"videos"`
	RAGResultsCount int                      `json:"rag_results_count"`
	Metadata        ResultMetadata           `json:"metadata"`
}

type ResultMetadata struct {
	ResearchTime float64 `json:"research_time"`
	SourcesCount int     `json:"sources_count"`
	ImagesCount  int     `json:"images_count"`
	NewsCount    int     `json:"news_count"`
	Model        string  `json:"model"`
	SessionID    string  `json:"session_id"`
}

// Request describes one research invocation.
type Request struct {
	Query       string
	Model       string
	SessionHint string // reuse an existing slug when non-empty
}

// SafetyResult is the tagged outcome of the safety filter. Checked is false
// when classification itself failed; the filter fails open in that case.
type SafetyResult struct {
	Unsafe  bool
	Checked bool
}

// AnalysisResult is the advisory outcome of query analysis.
type AnalysisResult struct {
	NeedsImages bool `json:"needs_images"`
	NeedsNews   bool `json:"needs_news"`
	IsClear     bool `json:"is_clear"`
}

// RetrievalBatch aggregates everything the fan-out produced.
type RetrievalBatch struct {
	WebResults   []searchmodels.Result
	Scraped      map[string]string // url -> text, failures excluded
	ScrapedOrder []string          // input URL order, successful entries only
	Images       []searchmodels.ImageItem
	News         []searchmodels.NewsItem
	Videos       []VideoDetail
}

// VideoDetail is a video search hit enriched with best-effort metadata.
type VideoDetail struct {
	searchmodels.VideoItem
	Transcript string `json:"transcript,omitempty"`
}

// VideoProvider resolves video hits and their details/transcripts. Details
// and Transcript are best-effort; errors degrade to the plain search hit.
type VideoProvider interface {
	Search(ctx context.Context, q string, k int) ([]searchmodels.VideoItem, error)
	Details(ctx context.Context, item searchmodels.VideoItem) (searchmodels.VideoItem, error)
	Transcript(ctx context.Context, item searchmodels.VideoItem) (string, error)
}

// Retriever is the retrieval store contract (implemented by internal/index).
type Retriever interface {
	IndexPages(ctx context.Context, pages map[string]string) (int, error)
	Query(ctx context.Context, q string, k int) index.QueryResult
}

// Recorder persists the session lifecycle (implemented by internal/store).
// Write failures are logged and swallowed by the orchestrator.
type Recorder interface {
	CreateSession(ctx context.Context, slug, query, model string) error
	Finalize(ctx context.Context, slug, status string, duration float64, answer string, resources []string, metadata map[string]interface{}) error
}

// ProgressFn receives best-effort stage progress, in stage order.
type ProgressFn func(stage Stage, message string)

// TerminalError is one of the four pipeline-ending failures. Reason is the
// machine-readable code recorded in session metadata; Message is user-facing.
type TerminalError struct {
	Reason  string
	Message string
}

func (e *TerminalError) Error() string { return fmt.Sprintf("%s: %s", e.Reason, e.Message) }

const (
	ReasonSexualContent = "sexual_content_detected"
	ReasonNoWebResults  = "no_web_results"
	ReasonUnclearQuery  = "unclear_query"
	ReasonSynthesis     = "synthesis_failed"
)

var (
	errUnsafeQuery = &TerminalError{Reason: ReasonSexualContent, Message: "Sorry, I can't help with that."}
	errNoResults   = &TerminalError{Reason: ReasonNoWebResults, Message: "No relevant information found. Please try rephrasing your query."}
	errUnclear     = &TerminalError{Reason: ReasonUnclearQuery, Message: "I'm not sure what you mean. Please try again with a more specific query."}
)
