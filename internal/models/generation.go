package models

// TextRequest is a copy-generation call from the admin dashboard.
type TextRequest struct {
	Action  string         `json:"action"`
	Content string         `json:"content"`
	Context map[string]any `json:"context,omitempty"`
}

type TextResponse struct {
	Text string `json:"text"`
}

// ImageRequest asks for a thumbnail for a piece of content.
type ImageRequest struct {
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Style    string `json:"style,omitempty"`
	Type     string `json:"type,omitempty"`
}

type ImageResponse struct {
	URL string `json:"url"`
}
