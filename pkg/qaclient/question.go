package qaclient

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTopK is the number of knowledge base passages requested when the
	// caller does not choose one.
	DefaultTopK = 4

	// MaxQuestionLength is the longest question the backend accepts, in
	// characters.
	MaxQuestionLength = 500
)

// ErrBlankQuestion is returned for an empty or whitespace-only question.
var ErrBlankQuestion = errors.New("question must not be blank")

// Question is the body of a streaming QA request.
type Question struct {
	Question       string   `json:"question"`
	ContextFilters []string `json:"contextFilters"`
	TopK           int      `json:"topK"`

	// UseKnowledgeBase is always sent as true by Client.
	UseKnowledgeBase bool `json:"useKnowledgeBase"`
}

// Validate checks the question against the limits the backend enforces.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return ErrBlankQuestion
	}
	if n := utf8.RuneCountInString(q.Question); n > MaxQuestionLength {
		return fmt.Errorf("question is %d characters, limit is %d", n, MaxQuestionLength)
	}
	if q.TopK < 0 {
		return fmt.Errorf("topK must not be negative, got %d", q.TopK)
	}
	return nil
}

// normalized fills defaults so the request body is always complete.
func (q Question) normalized() Question {
	if q.ContextFilters == nil {
		q.ContextFilters = []string{}
	}
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	q.UseKnowledgeBase = true
	return q
}
