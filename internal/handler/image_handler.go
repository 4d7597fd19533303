package handler

import (
	"io"
	"net/http"

	"github.com/hitoshi/agora/internal/model"
)

// ImageValidator はユーザー指定URLの事前検証インターフェース。
// security.URLGuardServiceの部分集合として定義する。
type ImageValidator interface {
	ValidateURL(rawURL string) error
}

// maxImageBytes は画像プロキシが転送するレスポンスボディの上限。
const maxImageBytes = 5 << 20

// ImageHandler はリモート画像のプロキシ取得を行うHTTPハンドラー。
// 投稿・アバターの画像参照はユーザー指定URLであるため、静的検証を通過した
// URLのみをSSRF防止クライアント経由で取得する。クライアント側のDialer検証が
// DNS解決後のIPアドレスもブロックするため、検証とフェッチの二段構えになる。
type ImageHandler struct {
	validator ImageValidator
	client    *http.Client
}

// NewImageHandler はImageHandlerを生成する。
// clientにはsecurity.URLGuardService.NewSafeClientで生成したクライアントを渡す。
func NewImageHandler(validator ImageValidator, client *http.Client) *ImageHandler {
	return &ImageHandler{
		validator: validator,
		client:    client,
	}
}

// Fetch はクエリパラメータのURLが指す画像を取得してそのまま返す。
// GET /api/images?url=...
func (h *ImageHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		handleServiceError(w, model.NewInvalidImageURLError("url parameter is required"))
		return
	}

	if err := h.validator.ValidateURL(target); err != nil {
		handleServiceError(w, model.NewInvalidImageURLError(err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		handleServiceError(w, model.NewInvalidImageURLError(err.Error()))
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		handleServiceError(w, model.NewRemoteUnavailableError("image_fetch"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		handleServiceError(w, model.NewRemoteUnavailableError("image_fetch"))
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, io.LimitReader(resp.Body, maxImageBytes))
}
