package assistant

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/util"
	"edunexus_backend/internal/visibility"
	"edunexus_backend/pkg/monitoring"
	"edunexus_backend/pkg/tracing"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NoNotesReply 章节还没有已发布笔记时的固定回答，不调用任何 provider
const NoNotesReply = "There are no approved notes in this chapter yet, so I can't answer from your notes. Check back once notes are uploaded and approved."

const systemPrompt = "You are a study assistant for one chapter of a course. " +
	"Answer only from the notes provided below. " +
	"If the notes do not cover the question, say so plainly. " +
	"Do not use outside knowledge and do not invent sources."

// Library 助手读取章节和笔记所需的最小存储接口
type Library interface {
	FindChapter(ctx context.Context, id string) (*model.Chapter, error)
	ListNotes(ctx context.Context, filter repository.NoteFilter) ([]model.Note, error)
}

type Answer struct {
	Content string   `json:"content"`
	Sources []string `json:"sources"`
	// Provider 实际应答的实现，便于排查
	Provider string `json:"provider,omitempty"`
}

type Assistant struct {
	library    Library
	router     *Router
	model      string
	maxSources int
}

type Option func(*Assistant)

func WithModel(name string) Option {
	return func(a *Assistant) {
		if name != "" {
			a.model = name
		}
	}
}

func WithMaxSources(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxSources = n
		}
	}
}

func New(library Library, router *Router, opts ...Option) *Assistant {
	a := &Assistant{library: library, router: router, maxSources: 3}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask 只把章节内已发布的笔记交给模型，返回的来源都是这些笔记的标题
func (a *Assistant) Ask(ctx context.Context, chapterID, question string) (Answer, error) {
	ctx, span := tracing.Tracer.Start(ctx, "assistant.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("chapter.id", chapterID))

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, util.NewEmptyFieldError("question")
	}

	if _, err := a.library.FindChapter(ctx, chapterID); err != nil {
		return Answer{}, err
	}
	notes, err := a.library.ListNotes(ctx, repository.NoteFilter{ChapterID: chapterID, Status: model.NoteApproved})
	if err != nil {
		return Answer{}, err
	}
	scope := visibility.ApprovedNotes(notes, chapterID)
	if len(scope) == 0 {
		monitoring.AssistantRequests.WithLabelValues("none", "no_notes").Inc()
		return Answer{Content: NoNotesReply, Sources: []string{}}, nil
	}

	docs := rank(scope, question, a.maxSources)
	req := CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: buildContext(docs)},
			{Role: "user", Content: question},
		},
		Model:       a.model,
		Temperature: 0.2,
		Documents:   docs,
	}

	resp, provider, err := a.router.Complete(ctx, req)
	span.SetAttributes(attribute.String("assistant.provider", provider))
	if err != nil {
		monitoring.AssistantRequests.WithLabelValues(provider, "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, err
	}
	monitoring.AssistantRequests.WithLabelValues(provider, "ok").Inc()

	sources := make([]string, len(docs))
	for i, d := range docs {
		sources[i] = d.Title
	}
	return Answer{Content: resp.Content, Sources: sources, Provider: provider}, nil
}

// rank 按与问题的词项重合度排序，取前 limit 篇；重合度相同时保持原顺序
func rank(notes []model.Note, question string, limit int) []Document {
	terms := termSet(question)
	type scored struct {
		note  model.Note
		score int
	}
	list := make([]scored, len(notes))
	for i, n := range notes {
		list[i] = scored{note: n, score: overlap(terms, n.Title+" "+n.Content)}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})
	if len(list) > limit {
		list = list[:limit]
	}

	docs := make([]Document, len(list))
	for i, s := range list {
		docs[i] = Document{Title: s.note.Title, Content: s.note.Content}
	}
	return docs
}

func buildContext(docs []Document) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nNotes:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, d.Title, d.Content)
	}
	return b.String()
}
