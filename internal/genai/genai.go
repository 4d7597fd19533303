// Package genai は生成テキストAPIコラボレーターへのクライアントを提供する。
// コラボレーターの失敗は固定のフォールバック文字列に縮退させる責務を
// 呼び出し側（internal/assist）が持ち、致命的エラーとしては伝播させない。
package genai

import (
	"context"
	"sync"
)

// ロールの定義。Gemini APIのcontentsロールに対応する。
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn はマルチターン会話の1ターンを表す。
type Turn struct {
	Role string // RoleUser または RoleModel
	Text string
}

// Client は生成テキストAPIのクライアントインターフェース。
type Client interface {
	// Complete は単発のプロンプト補完を実行する。
	// systemInstructionは空でもよい。
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)

	// Converse はマルチターン会話の次の応答を生成する。
	// turnsは時系列順で、末尾がユーザーの最新メッセージであること。
	Converse(ctx context.Context, systemInstruction string, turns []Turn) (string, error)
}

// ChatSession はシステム指示と会話履歴を保持するマルチターンセッション。
// OpenSessionで生成し、Sendでメッセージを往復させる。
type ChatSession struct {
	client            Client
	systemInstruction string

	mu    sync.Mutex
	turns []Turn
}

// OpenSession は指定のシステム指示で新しいチャットセッションを開く。
func OpenSession(client Client, systemInstruction string) *ChatSession {
	return &ChatSession{
		client:            client,
		systemInstruction: systemInstruction,
	}
}

// Send はユーザーメッセージを送信して応答を返す。
// 成功時はユーザーメッセージと応答の両方を履歴に追記する。
// 失敗時は履歴を変更せずエラーを返す（呼び出し側がフォールバックを適用する）。
func (s *ChatSession) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	turns := make([]Turn, len(s.turns), len(s.turns)+1)
	copy(turns, s.turns)
	s.mu.Unlock()

	turns = append(turns, Turn{Role: RoleUser, Text: message})

	reply, err := s.client.Converse(ctx, s.systemInstruction, turns)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: message}, Turn{Role: RoleModel, Text: reply})
	s.mu.Unlock()

	return reply, nil
}

// History は会話履歴のスナップショットを返す。
func (s *ChatSession) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
