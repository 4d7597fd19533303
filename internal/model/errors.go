// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: not_found, conflict, validation, auth, remote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ。コマンドの失敗分類に対応する。
const (
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryRemote     = "remote"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeCartLineNotFound  = "CART_LINE_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodePostNotFound      = "POST_NOT_FOUND"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeUsernameTaken     = "USERNAME_TAKEN"
	ErrCodeEmptyText         = "EMPTY_TEXT"
	ErrCodeSelfFollow        = "SELF_FOLLOW"
	ErrCodeEmptyCart         = "EMPTY_CART"
	ErrCodeInvalidImageURL   = "INVALID_IMAGE_URL"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
)

// CategoryOf はerrのAPIErrorカテゴリを返す。
// APIError以外のエラーはsystemとして扱う。
func CategoryOf(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Category
	}
	return CategorySystem
}

// NewProductNotFoundError はカタログに存在しない商品IDのエラーを生成する。
func NewProductNotFoundError(productID int) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %d", productID),
		Category: CategoryNotFound,
		Action:   "商品IDを確認してください。",
	}
}

// NewCartLineNotFoundError はカートに存在しない商品行のエラーを生成する。
func NewCartLineNotFoundError(productID int) *APIError {
	return &APIError{
		Code:     ErrCodeCartLineNotFound,
		Message:  fmt.Sprintf("カートに該当する商品がありません: %d", productID),
		Category: CategoryNotFound,
		Action:   "カートの内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", ref),
		Category: CategoryNotFound,
		Action:   "ユーザーIDまたはユーザー名を確認してください。",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: CategoryNotFound,
		Action:   "投稿IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: CategoryNotFound,
		Action:   "コメントIDを確認してください。",
	}
}

// NewUsernameTakenError はユーザー名の重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: CategoryConflict,
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewEmptyTextError は空テキストのエラーを生成する。
// fieldには対象フィールド名（content, comment等）を指定する。
func NewEmptyTextError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeEmptyText,
		Message:  fmt.Sprintf("%s が空です。", field),
		Category: CategoryValidation,
		Action:   "テキストを入力してください。",
	}
}

// NewSelfFollowError は自分自身へのフォロー操作のエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身をフォローすることはできません。",
		Category: CategoryValidation,
		Action:   "別のユーザーを指定してください。",
	}
}

// NewEmptyCartError は空カートでのチェックアウトのエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空のためチェックアウトできません。",
		Category: CategoryValidation,
		Action:   "商品をカートに追加してください。",
	}
}

// NewInvalidImageURLError は不正な画像URLのエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("無効な画像URLです: %s", reason),
		Category: CategoryValidation,
		Action:   "https:// で始まる公開URLを指定してください。",
	}
}

// NewUnauthenticatedError は未認証状態でのコマンド実行エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "この操作にはログインが必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewRemoteUnavailableError はバッキングコールの失敗エラーを生成する。
// 楽観的更新のロールバック通知経由でのみ呼び出し元に届く。
func NewRemoteUnavailableError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteUnavailable,
		Message:  fmt.Sprintf("リモート処理に失敗しました: %s", operation),
		Category: CategoryRemote,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
