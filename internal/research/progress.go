package research

// Stage names the pipeline phases in execution order.
type Stage string

const (
	StageSafetyCheck   Stage = "safety_check"
	StageQueryAnalysis Stage = "query_analysis"
	StageWebSearch     Stage = "web_search"
	StageScraping      Stage = "scraping"
	StageIndexing      Stage = "indexing"
	StageImageSearch   Stage = "image_search"
	StageNewsSearch    Stage = "news_search"
	StageVideoSearch   Stage = "video_search"
	StageSynthesis     Stage = "synthesis"
	StageFinalizing    Stage = "finalizing"
)

var stageMessages = map[Stage]string{
	StageSafetyCheck:   "Checking content safety...",
	StageQueryAnalysis: "Analyzing query requirements...",
	StageWebSearch:     "Searching web for relevant information...",
	StageScraping:      "Reading top sources...",
	StageIndexing:      "Indexing scraped content...",
	StageImageSearch:   "Searching for relevant images...",
	StageNewsSearch:    "Searching for related news...",
	StageVideoSearch:   "Searching for video resources...",
	StageSynthesis:     "Generating final answer...",
	StageFinalizing:    "Finalizing research session...",
}
