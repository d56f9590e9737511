package assistant

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// NoCoverageReply 参考笔记里找不到相关内容时的固定回答
const NoCoverageReply = "The notes in this chapter don't cover that yet. Try rephrasing your question or ask your teacher."

// ExtractiveProvider 离线实现：从参考笔记中摘取与问题词项重合最多的句子，不生成新内容
type ExtractiveProvider struct {
	// MaxSentences 默认 2
	MaxSentences int
}

func NewExtractiveProvider() *ExtractiveProvider {
	return &ExtractiveProvider{MaxSentences: 2}
}

func (p *ExtractiveProvider) Name() string {
	return "extractive"
}

type scoredSentence struct {
	text  string
	score int
	order int
}

func (p *ExtractiveProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	limit := p.MaxSentences
	if limit <= 0 {
		limit = 2
	}
	terms := termSet(lastUserMessage(req.Messages))

	var candidates []scoredSentence
	for _, doc := range req.Documents {
		for _, s := range splitSentences(doc.Content) {
			score := overlap(terms, s)
			if score > 0 {
				candidates = append(candidates, scoredSentence{text: s, score: score, order: len(candidates)})
			}
		}
	}
	if len(candidates) == 0 {
		return CompletionResponse{Content: NoCoverageReply, Model: p.Name()}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	// 保持原文顺序输出
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].order < candidates[j].order
	})

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.text
	}
	return CompletionResponse{
		Content: "Based on your chapter notes: " + strings.Join(parts, " "),
		Model:   p.Name(),
	}, nil
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "what": true,
	"how": true, "why": true, "when": true, "which": true, "with": true, "this": true,
	"that": true, "can": true, "you": true, "does": true, "between": true, "about": true,
	"from": true, "into": true, "explain": true, "tell": true, "key": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func termSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, t := range tokenize(text) {
		set[t] = true
	}
	return set
}

// overlap 文本中出现的不同问题词项个数
func overlap(terms map[string]bool, text string) int {
	seen := map[string]bool{}
	for _, t := range tokenize(text) {
		if terms[t] {
			seen[t] = true
		}
	}
	return len(seen)
}
