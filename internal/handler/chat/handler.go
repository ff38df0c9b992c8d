package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由，路径与旧版前端保持一致
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/save-chat", h.handleSaveChat)
	r.Get("/load-chats", h.handleLoadChats)
	r.Get("/load-chat/{chatID}", h.handleLoadChat)
	r.Post("/update-chat-title/{chatID}", h.handleUpdateTitle)
	r.Delete("/delete-chat/{chatID}", h.handleDeleteChat)
	r.Post("/chat", h.handleChat)
}

// handleSaveChat 创建会话，标题取自首条消息
func (h *Handler) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.Message)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"chatId": session.ID,
		"title":  session.Title,
	})
}

// handleLoadChats 列出全部会话，最新的在前
func (h *Handler) handleLoadChats(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.chatSvc.ListSessions(r.Context())
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": summaries})
}

// handleLoadChat 返回完整会话
func (h *Handler) handleLoadChat(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}

// handleUpdateTitle 修改会话标题
func (h *Handler) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}

	session, err := h.chatSvc.UpdateTitle(r.Context(), chi.URLParam(r, "chatID"), payload.Title)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"title":   session.Title,
	})
}

// handleDeleteChat 删除会话
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleChat 发送消息并返回模型回复。
// 根路径前端读取 message，/api 前端读取 response，两者都返回。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChatID  string `json:"chatId"`
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}

	reply, err := h.chatSvc.SendMessage(r.Context(), payload.ChatID, payload.Message)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message":  reply,
		"response": reply,
		"chatId":   payload.ChatID,
	})
}

// decodeBody 解析JSON请求体，空请求体视为空对象
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
