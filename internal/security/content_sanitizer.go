// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力テキスト（投稿本文・コメント・bio）を
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// このドメインのユーザーテキストはプレーンテキストのため、bluemondayの
// StrictPolicy（全タグ除去）を使用する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// ユーザーテキストの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はテキストからHTMLタグをすべて除去して返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 投稿・コメント・bioはマークアップを持たないプレーンテキストのため、
// StrictPolicyですべてのタグと属性を除去する。scriptタグやon*イベント属性の
// 混入はここで遮断される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからHTMLタグをすべて除去して返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
