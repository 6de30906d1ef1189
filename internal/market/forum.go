package market

import (
	"strings"

	"github.com/rentatutor/rentatutor/internal/model"
)

// Phrases that mark a request to have homework done rather than explained.
var forbiddenPhrases = []string{"do my homework", "solve this for me", "give me the answer"}

// TrendingUpvotes is the upvote count from which a question is trending.
const TrendingUpvotes = 10

// QuestionForm is a new forum post.
type QuestionForm struct {
	Title   string
	Content string
	Subject string
}

// ValidateQuestion checks a post is complete and asks to learn, not to
// have work done.
func ValidateQuestion(f QuestionForm) (model.Notice, error) {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Content) == "" || strings.TrimSpace(f.Subject) == "" {
		return model.Notice{}, invalid(NoticeFillAllFields, nil)
	}
	combined := strings.ToLower(f.Title + " " + f.Content)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(combined, phrase) {
			return model.Notice{}, invalid(NoticeHomeworkRejected, nil)
		}
	}
	return success(NoticeQuestionPosted, nil), nil
}

// ValidateAnswer checks that the actor may answer and wrote something.
func ValidateAnswer(actor *model.Actor, content string) (model.Notice, error) {
	if actor == nil || actor.Role != model.RoleTutor {
		return model.Notice{}, invalid(NoticeTutorsOnly, nil)
	}
	if strings.TrimSpace(content) == "" {
		return model.Notice{}, invalid(NoticeAnswerEmpty, nil)
	}
	return success(NoticeAnswerPosted, nil), nil
}

// Filter is a forum tab.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterUnanswered Filter = "unanswered"
	FilterTrending   Filter = "trending"
	FilterMine       Filter = "mine"
)

// Filters lists the tabs in display order.
var Filters = []Filter{FilterAll, FilterUnanswered, FilterTrending, FilterMine}

// ParseFilter falls back to FilterAll for unknown values.
func ParseFilter(s string) Filter {
	for _, f := range Filters {
		if string(f) == s {
			return f
		}
	}
	return FilterAll
}

// FilterQuestions applies a tab and a case-insensitive search over title
// and content. actorID identifies "mine".
func FilterQuestions(qs []model.Question, f Filter, query, actorID string) []model.Question {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []model.Question
	for _, q := range qs {
		switch f {
		case FilterUnanswered:
			if q.HasAnswer {
				continue
			}
		case FilterTrending:
			if q.Upvotes < TrendingUpvotes {
				continue
			}
		case FilterMine:
			if actorID == "" || q.AuthorID != actorID {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(q.Title), query) &&
			!strings.Contains(strings.ToLower(q.Content), query) {
			continue
		}
		out = append(out, q)
	}
	return out
}
