package generate

import (
	"fmt"
	"sort"
	"strings"
)

const systemBase = "You are a writing assistant for a personal portfolio website. " +
	"Reply with the finished text only: no preamble, no surrounding quotes, no markdown headings."

// textActions maps every accepted action to its instruction. The set is
// closed; anything else is ErrInvalidAction.
var textActions = map[string]string{
	"improve_bio":         "Rewrite this personal bio so it is warm, confident and concise. Keep it in the first person and keep every fact.",
	"generate_tagline":    "Write one short professional tagline (under 12 words) based on this description.",
	"project_description": "Write an engaging two-paragraph description of this software project for a portfolio page.",
	"project_summary":     "Summarize this project in one sentence of at most 25 words.",
	"book_review":         "Write a thoughtful personal book review of about 150 words based on these notes.",
	"book_summary":        "Summarize this book in three sentences for a reading list.",
	"video_description":   "Write a YouTube-style video description with a short hook followed by a summary.",
	"course_description":  "Write a clear course description covering what the learner will gain.",
	"seo_title":           "Write an SEO page title of at most 60 characters for this content.",
	"seo_description":     "Write an SEO meta description of at most 155 characters for this content.",
	"expand":              "Expand this text with more detail and examples while keeping the tone.",
	"shorten":             "Shorten this text to roughly half its length, keeping the key points.",
	"fix_grammar":         "Correct spelling, grammar and punctuation. Change nothing else.",
}

// Actions returns the accepted text actions, sorted.
func Actions() []string {
	out := make([]string, 0, len(textActions))
	for a := range textActions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func textMessages(action, content string, extra map[string]any) []Message {
	var b strings.Builder
	b.WriteString(textActions[action])
	if len(extra) > 0 {
		b.WriteString("\n\nContext:")
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n- %s: %v", k, extra[k])
		}
	}
	b.WriteString("\n\nText:\n")
	b.WriteString(content)

	return []Message{
		{Role: "system", Content: systemBase},
		{Role: "user", Content: b.String()},
	}
}

var imageStyles = map[string]string{
	"modern":       "clean modern design with bold shapes and a subtle gradient",
	"minimal":      "minimalist composition with generous negative space and a restrained palette",
	"vibrant":      "vibrant, saturated colors with energetic composition",
	"professional": "polished corporate look with balanced layout and muted tones",
}

var imageTypes = map[string]string{
	"project": "software project showcase",
	"book":    "book feature",
	"video":   "video thumbnail",
	"course":  "online course banner",
}

const (
	defaultStyle = "modern"
	defaultType  = "project"
)

func imagePrompt(title, category, style, kind string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a 16:9 %s image for %q.", imageTypes[kind], title)
	if category != "" {
		fmt.Fprintf(&b, " The topic is %s.", category)
	}
	fmt.Fprintf(&b, " Style: %s.", imageStyles[style])
	b.WriteString(" Do not render any text or lettering in the image.")
	return b.String()
}
