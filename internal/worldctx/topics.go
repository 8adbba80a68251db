package worldctx

import "time"

// Topic is one grounding item offered to the prompt.
type Topic struct {
	Name    string
	Snippet string
}

// Categories are the live lookup queries.
var Categories = []string{
	"technology trends 2026",
	"AI news today",
	"cryptocurrency market",
	"social media controversy",
	"startup news",
	"internet culture memes",
	"productivity apps",
	"remote work trends",
}

var staticTopics = []Topic{
	{"Tech Industry", "AI tools are increasingly being integrated into workplace productivity software, raising questions about automation and job displacement."},
	{"Social Media", "Short-form video continues to dominate attention. Average screen time has increased 15% year-over-year."},
	{"Economy", "Subscription fatigue is becoming a major consumer concern as more services move to recurring payment models."},
	{"Culture", "The creator economy faces monetization challenges as platform algorithms prioritize engagement over quality."},
	{"Work Trends", "Return-to-office mandates are meeting resistance. Hybrid work remains the most requested arrangement."},
	{"Internet Culture", "Authenticity fatigue: users increasingly skeptical of 'genuine' content that feels manufactured for algorithms."},
}

var (
	lateNightTopic = Topic{"Late Night Thoughts", "Night scrolling peaks between 11pm and 2am. Insomnia-driven engagement is a growing advertising segment."}
	weekendTopic   = Topic{"Weekend Patterns", "Weekend social media usage shifts from work-stress content to lifestyle comparison posts."}
)

// SyntheticTopics returns the hand-authored topics for the moment now.
func SyntheticTopics(now time.Time) []Topic {
	topics := append([]Topic(nil), staticTopics...)
	if h := now.Hour(); h >= 22 || h < 6 {
		topics = append(topics, lateNightTopic)
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		topics = append(topics, weekendTopic)
	}
	return topics
}
