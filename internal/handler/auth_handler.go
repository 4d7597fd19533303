package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/agora/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするストアインターフェース。
// store.Storeの部分集合として定義する。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, name string) (*model.Session, error)
	LoginAs(ctx context.Context, username string) (*model.Session, error)
	Signup(ctx context.Context, name, username string) (*model.Session, error)
	Logout(ctx context.Context)
	Session() *model.Session
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// SecureCookie はCookieにSecure属性を付けるかどうか。本番環境ではtrue。
	SecureCookie bool
}

// AuthHandler はセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics CommandMetrics
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, metrics CommandMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// loginRequest はストアフロントログインのリクエストボディ。
type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// loginAsRequest は既存ユーザーとしてのログインのリクエストボディ。
type loginAsRequest struct {
	Username string `json:"username"`
}

// signupRequest は新規ユーザー登録のリクエストボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// sessionResponse はセッション情報のAPIレスポンス。
type sessionResponse struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// Login はストアフロントのログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "login")
	session, err := h.service.Login(r.Context(), req.Email, req.Name)
	if err != nil {
		recordFailure(h.metrics, "login", err)
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// LoginAs は既存のソーシャルユーザーとしてログインする。
// POST /api/auth/login-as
func (h *AuthHandler) LoginAs(w http.ResponseWriter, r *http.Request) {
	var req loginAsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "login_as")
	session, err := h.service.LoginAs(r.Context(), req.Username)
	if err != nil {
		recordFailure(h.metrics, "login_as", err)
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Signup は新規ユーザーを登録しログイン状態にする。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "signup")
	session, err := h.service.Signup(r.Context(), req.Name, req.Username)
	if err != nil {
		recordFailure(h.metrics, "signup", err)
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Logout はセッションを破棄する。カートは保持される。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	recordCommand(h.metrics, "logout")
	h.service.Logout(r.Context())

	// Cookieを無効化
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_id")
	if err != nil || cookie.Value == "" {
		writeUnauthorized(w)
		return
	}

	session := h.service.Session()
	if session == nil || session.ID != cookie.Value {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// toSessionResponse はmodel.SessionからAPIレスポンスに変換する。
func toSessionResponse(session *model.Session) sessionResponse {
	return sessionResponse{
		ID:     session.ID,
		UserID: session.UserID,
		Name:   session.Name,
		Email:  session.Email,
	}
}
