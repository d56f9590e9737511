package assistant

import (
	"context"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/monitoring"
	"strings"
	"sync"
	"time"
)

// Asker 由 Assistant 实现，测试中可替换
type Asker interface {
	Ask(ctx context.Context, chapterID, question string) (Answer, error)
}

// Notebooks 每个 (会话, 章节) 一份只追加的对话记录，只保存在进程内存
type Notebooks struct {
	mu          sync.RWMutex
	asker       Asker
	busy        *util.BusyGuard
	transcripts map[string][]model.AIMessage
	now         func() time.Time
}

func NewNotebooks(asker Asker) *Notebooks {
	return &Notebooks{
		asker:       asker,
		busy:        util.NewBusyGuard(),
		transcripts: make(map[string][]model.AIMessage),
		now:         time.Now,
	}
}

func notebookKey(sessionID, chapterID string) string {
	return sessionID + "/" + chapterID
}

// Ask 同一笔记本上一个问题还没回答完时返回 util.ErrBusy。
// 成功时返回本次追加的用户消息和助手消息。
func (n *Notebooks) Ask(ctx context.Context, sessionID, chapterID, question string) ([]model.AIMessage, error) {
	key := notebookKey(sessionID, chapterID)
	release, ok := n.busy.TryAcquire(key)
	if !ok {
		monitoring.BusyRejections.WithLabelValues("ask").Inc()
		return nil, util.ErrBusy
	}
	defer release()

	asked := n.now()
	answer, err := n.asker.Ask(ctx, chapterID, question)
	if err != nil {
		return nil, err
	}

	msgs := []model.AIMessage{
		{ID: model.NewID(), Role: model.RoleUser, Content: question, Timestamp: asked},
		{ID: model.NewID(), Role: model.RoleAssistant, Content: answer.Content, Sources: answer.Sources, Timestamp: n.now()},
	}

	n.mu.Lock()
	n.transcripts[key] = append(n.transcripts[key], msgs...)
	n.mu.Unlock()

	return msgs, nil
}

func (n *Notebooks) Transcript(sessionID, chapterID string) []model.AIMessage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]model.AIMessage{}, n.transcripts[notebookKey(sessionID, chapterID)]...)
}

// Drop 退出登录时丢弃该会话的全部笔记本
func (n *Notebooks) Drop(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	prefix := sessionID + "/"
	for key := range n.transcripts {
		if strings.HasPrefix(key, prefix) {
			delete(n.transcripts, key)
		}
	}
}
