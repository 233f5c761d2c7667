package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/domain"
)

func kbItem(title, content string, tags ...string) *domain.KnowledgeItem {
	return &domain.KnowledgeItem{
		ID:      title,
		Title:   title,
		Content: content,
		Tags:    tags,
	}
}

func TestRankByKeyword_SingleMatch(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Installation Guide", "How to install"),
		kbItem("User Manual", "How to use"),
	}

	ranked := RankByKeyword("installation", kb)

	require.Len(t, ranked, 1)
	assert.Equal(t, "Installation Guide", ranked[0].Item.Title)
}

func TestRankByKeyword_TitleOutranksContent(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Other Guide", "Product related"),
		kbItem("Product Guide", "Other"),
	}

	ranked := RankByKeyword("product", kb)

	require.Len(t, ranked, 2)
	assert.Equal(t, "Product Guide", ranked[0].Item.Title)
	assert.Equal(t, "Other Guide", ranked[1].Item.Title)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankByKeyword_NoOverlap(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Installation Guide", "How to install"),
	}

	assert.Empty(t, RankByKeyword("refund policy", kb))
}

func TestRankByKeyword_TiesKeepKnowledgeBaseOrder(t *testing.T) {
	kb := []*domain.KnowledgeItem{
		kbItem("Guide A", "setup steps"),
		kbItem("Guide B", "setup steps"),
	}

	ranked := RankByKeyword("setup", kb)

	require.Len(t, ranked, 2)
	assert.Equal(t, "Guide A", ranked[0].Item.Title)
	assert.Equal(t, "Guide B", ranked[1].Item.Title)
}

func TestKeywordScore_Weights(t *testing.T) {
	item := kbItem("Smart Lock Setup", "How to install the smart lock", "lock")

	// Whole query hits title, content and tag, plus one token > 1 char
	// matching the title+content haystack.
	score := KeywordScore("lock", item)
	assert.InDelta(t, 3.0+2.0+1.5+0.5, score, 1e-9)
}

func TestKeywordScore_TokensSplitOnWhitespace(t *testing.T) {
	item := kbItem("Battery Guide", "replace the battery and its cover")

	// The full query matches nothing wholesale; "battery" and "cover" each
	// count as token hits.
	score := KeywordScore("battery cover", item)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestKeywordScore_SingleCharTokensIgnored(t *testing.T) {
	item := kbItem("Guide", "x a y b z")
	assert.Equal(t, 0.0, KeywordScore("a b", item))
}

func TestKeywordScore_CaseInsensitive(t *testing.T) {
	item := kbItem("INSTALLATION Guide", "HOW TO INSTALL")
	assert.Greater(t, KeywordScore("Installation", item), 0.0)
}
