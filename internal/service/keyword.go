package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

// Lexical scoring weights. A whole-query title hit is the strongest signal,
// tags sit between content and individual tokens.
const (
	titleMatchWeight   = 3.0
	contentMatchWeight = 2.0
	tagMatchWeight     = 1.5
	tokenMatchWeight   = 0.5
)

// KeywordScore computes a lexical relevance score for one item. Matching is
// case-insensitive substring containment; single-character tokens are too
// noisy to count.
func KeywordScore(query string, item *domain.KnowledgeItem) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || item == nil {
		return 0
	}

	title := strings.ToLower(item.Title)
	content := strings.ToLower(item.Content)

	var score float64
	if strings.Contains(title, query) {
		score += titleMatchWeight
	}
	if strings.Contains(content, query) {
		score += contentMatchWeight
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			score += tagMatchWeight
			break
		}
	}

	haystack := title + " " + content
	for _, token := range strings.Fields(query) {
		if utf8.RuneCountInString(token) <= 1 {
			continue
		}
		if strings.Contains(haystack, token) {
			score += tokenMatchWeight
		}
	}

	return score
}

// RankByKeyword scores the whole knowledge base lexically, drops zero-score
// items, and sorts descending. Ties keep knowledge base order.
func RankByKeyword(query string, items []*domain.KnowledgeItem) []*domain.ScoredItem {
	scored := make([]*domain.ScoredItem, 0, len(items))
	for _, item := range items {
		if s := KeywordScore(query, item); s > 0 {
			scored = append(scored, &domain.ScoredItem{Item: item, Score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}
