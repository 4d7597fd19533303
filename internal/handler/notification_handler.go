package handler

import (
	"net/http"

	"github.com/hitoshi/agora/internal/optimistic"
)

// NotificationSource は未配信の失敗通知の取得インターフェース。
// optimistic.FailureLogの部分集合として定義する。
type NotificationSource interface {
	Drain() []optimistic.FailureNotice
}

// NotificationHandler は楽観的更新のロールバック通知をクライアントへ配信するHTTPハンドラー。
// クライアントはポーリングで取得し、取得済みの通知は再配信されない。
type NotificationHandler struct {
	source NotificationSource
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(source NotificationSource) *NotificationHandler {
	return &NotificationHandler{source: source}
}

// notificationResponse は失敗通知のAPIレスポンス。
type notificationResponse struct {
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Action    string `json:"action"`
}

// notificationListResponse は通知一覧のAPIレスポンス。
type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

// List は蓄積された失敗通知をすべて取り出して返す。
// 取り出した通知はログからクリアされるため、各通知はちょうど1回だけ配信される。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notices := h.source.Drain()

	out := make([]notificationResponse, 0, len(notices))
	for _, n := range notices {
		resp := notificationResponse{Operation: n.Operation}
		if n.Err != nil {
			resp.Code = n.Err.Code
			resp.Message = n.Err.Message
			resp.Action = n.Err.Action
		}
		out = append(out, resp)
	}

	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: out})
}
