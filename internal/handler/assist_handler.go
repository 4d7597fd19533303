package handler

import (
	"context"
	"net/http"
)

// AssistServiceInterface はアシスタントハンドラーが必要とするサービスインターフェース。
// assist.Serviceの部分集合として定義する。
// すべての操作は失敗時にフォールバック文字列を返すためエラーを返さない。
type AssistServiceInterface interface {
	Chat(ctx context.Context, message string) string
	ResetChat()
	SuggestCaption(ctx context.Context, topic string) string
	EnhanceBio(ctx context.Context, currentBio string) string
}

// AssistHandler はテキスト補完アシスタントのHTTPハンドラー。
type AssistHandler struct {
	service AssistServiceInterface
}

// NewAssistHandler はAssistHandlerを生成する。
func NewAssistHandler(service AssistServiceInterface) *AssistHandler {
	return &AssistHandler{service: service}
}

// chatRequest はチャットリクエストのボディ。
type chatRequest struct {
	Message string `json:"message"`
}

// captionRequest はキャプション提案リクエストのボディ。
type captionRequest struct {
	Topic string `json:"topic"`
}

// enhanceBioRequest は自己紹介強化リクエストのボディ。
type enhanceBioRequest struct {
	Bio string `json:"bio"`
}

// textResponse はテキスト補完結果のAPIレスポンス。
type textResponse struct {
	Text string `json:"text"`
}

// Chat はショッピングアシスタントとの対話を処理する。
// 補完が失敗してもフォールバック文字列で200を返す。
// POST /api/assist/chat
func (h *AssistHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	reply := h.service.Chat(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, textResponse{Text: reply})
}

// ResetChat は対話履歴を破棄する。
// POST /api/assist/chat/reset
func (h *AssistHandler) ResetChat(w http.ResponseWriter, r *http.Request) {
	h.service.ResetChat()
	w.WriteHeader(http.StatusNoContent)
}

// SuggestCaption は投稿キャプションの候補を返す。
// POST /api/assist/caption
func (h *AssistHandler) SuggestCaption(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	caption := h.service.SuggestCaption(r.Context(), req.Topic)
	writeJSON(w, http.StatusOK, textResponse{Text: caption})
}

// EnhanceBio は自己紹介文の改善案を返す。失敗時は元の文をそのまま返す。
// POST /api/assist/bio
func (h *AssistHandler) EnhanceBio(w http.ResponseWriter, r *http.Request) {
	var req enhanceBioRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	enhanced := h.service.EnhanceBio(r.Context(), req.Bio)
	writeJSON(w, http.StatusOK, textResponse{Text: enhanced})
}
