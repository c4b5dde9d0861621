package models

// Result is the readable view of one fetched page.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	Text     string `json:"text"`
	TopImage string `json:"top_image"`
	HTMLHash string `json:"html_hash"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}
