package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/zhouzirui/z-chat/backend/internal/apperr"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// StatusFor 将错误类型映射为 HTTP 状态码，未分类的错误视为 500。
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.KindNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.KindInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperr.KindUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError 根据错误类型返回对应状态码，未找到统一使用 "Chat not found"。
func RespondAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := apperr.Message(err)
	if status == http.StatusNotFound {
		message = "Chat not found"
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[http] request failed: %v", err)
	}
	RespondError(w, status, message)
}
