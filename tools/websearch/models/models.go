package models

// Result is a single web search hit in provider rank order.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// NewsItem is a single news search hit.
type NewsItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Source    string `json:"source"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Age       string `json:"age,omitempty"`
}

// ImageItem is a single image search hit.
type ImageItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`       // page hosting the image
	ImageURL  string `json:"image_url"` // direct image URL
	Thumbnail string `json:"thumbnail,omitempty"`
}

// VideoItem is a single video search hit.
type VideoItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Creator   string `json:"creator,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Views     int64  `json:"views,omitempty"`
}
