package service

import (
	"context"
	"edunexus_backend/internal/assistant"
	"edunexus_backend/internal/model"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/logger"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// 笔记本 websocket 的消息类型
const (
	MsgAsk        = "ASK"
	MsgTranscript = "TRANSCRIPT"
	MsgMessage    = "MESSAGE"
	MsgError      = "ERROR"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type askPayload struct {
	Question string `json:"question"`
}

// NotebookClient 一个浏览器标签页与自己章节笔记本之间的连接
type NotebookClient struct {
	hub       *NotebookHub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	chapterID string
	limiter   *rate.Limiter
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NotebookHub 管理笔记本 websocket 连接。每个连接只收发自己会话的对话记录，
// 不在用户之间广播。
type NotebookHub struct {
	Notebooks *assistant.Notebooks
	Access    *AccessChecker

	mu      sync.Mutex
	clients map[string]map[*NotebookClient]struct{}
}

func NewNotebookHub(notebooks *assistant.Notebooks, access *AccessChecker) *NotebookHub {
	return &NotebookHub{
		Notebooks: notebooks,
		Access:    access,
		clients:   make(map[string]map[*NotebookClient]struct{}),
	}
}

// Serve 校验章节权限后升级连接，先推送已有的对话记录
func (h *NotebookHub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, user *model.User, chapterID string) error {
	if _, err := h.Access.ReadableChapter(r.Context(), user, chapterID); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		logger.Log.Warn("Notebook websocket upgrade failed", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &NotebookClient{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
		chapterID: chapterID,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 3),
		ctx:       ctx,
		cancel:    cancel,
	}
	h.register(c)
	c.push(MsgTranscript, h.Notebooks.Transcript(sessionID, chapterID))

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *NotebookHub) register(c *NotebookClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*NotebookClient]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *NotebookHub) unregister(c *NotebookClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
}

// CloseSession 退出登录时断开会话的所有笔记本连接
func (h *NotebookHub) CloseSession(sessionID string) {
	h.mu.Lock()
	clients := make([]*NotebookClient, 0, len(h.clients[sessionID]))
	for c := range h.clients[sessionID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// DropSession 断开会话的连接并丢弃它的对话记录
func (h *NotebookHub) DropSession(sessionID string) {
	h.CloseSession(sessionID)
	h.Notebooks.Drop(sessionID)
}

// Close 停机时断开所有连接
func (h *NotebookHub) Close() {
	h.mu.Lock()
	sessions := make([]string, 0, len(h.clients))
	for sid := range h.clients {
		sessions = append(sessions, sid)
	}
	h.mu.Unlock()

	for _, sid := range sessions {
		h.CloseSession(sid)
	}
}

// Connections 当前会话打开的连接数
func (h *NotebookHub) Connections(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sessionID])
}

func (c *NotebookClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
	c.mu.Unlock()

	c.hub.unregister(c)
}

// push 发送缓冲区满时丢弃连接，不阻塞调用方
func (c *NotebookClient) push(msgType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Log.Error("Notebook message encode failed", zap.Error(err))
		return
	}
	payload, _ := json.Marshal(WSMessage{Type: msgType, Data: raw})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	full := false
	select {
	case c.send <- payload:
	default:
		full = true
	}
	c.mu.Unlock()

	if full {
		logger.Log.Warn("Notebook client too slow, closing", zap.String("session_id", c.sessionID))
		c.close()
	}
}

func (c *NotebookClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("Notebook websocket unexpected close", zap.Error(err), zap.String("session_id", c.sessionID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != MsgAsk {
			c.push(MsgError, errorPayload("unsupported message"))
			continue
		}
		if !c.limiter.Allow() {
			c.push(MsgError, errorPayload("too many questions, slow down"))
			continue
		}
		var p askPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.push(MsgError, errorPayload("invalid ask payload"))
			continue
		}
		go c.ask(p.Question)
	}
}

// ask 在独立 goroutine 中执行，进行中的再次提问由 Notebooks 返回 util.ErrBusy
func (c *NotebookClient) ask(question string) {
	msgs, err := c.hub.Notebooks.Ask(c.ctx, c.sessionID, c.chapterID, question)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrBusy):
			c.push(MsgError, errorPayload(util.ErrBusy.Error()))
		case util.IsValidation(err):
			c.push(MsgError, errorPayload(err.Error()))
		case errors.Is(err, context.Canceled):
		default:
			logger.Log.Error("Notebook ask failed", zap.Error(err), zap.String("chapter_id", c.chapterID))
			c.push(MsgError, errorPayload("assistant unavailable"))
		}
		return
	}
	c.hub.broadcast(c.sessionID, c.chapterID, msgs)
}

func (c *NotebookClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}

// Ask HTTP 方式提问，与 websocket 共用同一份对话记录和防重复提交
func (h *NotebookHub) Ask(ctx context.Context, sessionID string, user *model.User, chapterID, question string) ([]model.AIMessage, error) {
	if _, err := h.Access.ReadableChapter(ctx, user, chapterID); err != nil {
		return nil, err
	}
	msgs, err := h.Notebooks.Ask(ctx, sessionID, chapterID, question)
	if err != nil {
		return nil, err
	}
	h.broadcast(sessionID, chapterID, msgs)
	return msgs, nil
}

func (h *NotebookHub) Transcript(ctx context.Context, sessionID string, user *model.User, chapterID string) ([]model.AIMessage, error) {
	if _, err := h.Access.ReadableChapter(ctx, user, chapterID); err != nil {
		return nil, err
	}
	return h.Notebooks.Transcript(sessionID, chapterID), nil
}

// broadcast 把新消息推给同一会话打开该章节的所有连接，提问的连接也包括在内
func (h *NotebookHub) broadcast(sessionID, chapterID string, msgs []model.AIMessage) {
	h.mu.Lock()
	targets := []*NotebookClient{}
	for c := range h.clients[sessionID] {
		if c.chapterID == chapterID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		for _, m := range msgs {
			c.push(MsgMessage, m)
		}
	}
}
