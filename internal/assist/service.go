// Package assist は生成テキストを使うアシスト機能のドメインロジックを提供する。
// ストアフロントのショッピングアシスタントチャット、投稿キャプション生成、
// bio改善の3機能を持つ。コラボレーターの失敗は機能ごとの固定フォールバック
// 文字列に縮退させ、呼び出し元に致命的エラーを伝播させない。
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/agora/internal/genai"
	"github.com/hitoshi/agora/internal/model"
)

// 縮退時のフォールバック文字列。
const (
	fallbackChatError   = "Sorry, I encountered an error processing your request. Please try again later."
	fallbackChatEmpty   = "I'm not sure how to answer that."
	fallbackCaption     = "Error generating content. Please try again."
	fallbackCaptionNone = "Could not generate caption."
)

// ProductLister はシステム指示の組み立てに使うカタログ参照インターフェース。
type ProductLister interface {
	List() []model.Product
}

// Metrics は生成呼び出しの計測インターフェース。nil可。
type Metrics interface {
	RecordCompletionLatency(d time.Duration)
	RecordCompletionFallback(operation string)
}

// Service はアシスト機能のサービス層。
type Service struct {
	client  genai.Client
	catalog ProductLister
	logger  *slog.Logger
	metrics Metrics // nil可

	mu   sync.Mutex
	chat *genai.ChatSession // 遅延初期化
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client genai.Client, catalog ProductLister, logger *slog.Logger) *Service {
	return &Service{
		client:  client,
		catalog: catalog,
		logger:  logger,
	}
}

// SetMetrics は計測フックを設定する。
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

// Chat はショッピングアシスタントにメッセージを送り、応答を返す。
// セッションは初回呼び出し時にカタログ全体を含むシステム指示で開かれ、
// 以降の呼び出しで会話履歴が引き継がれる。
// コラボレーターの失敗時はフォールバック文字列を返す（エラーは返さない）。
func (s *Service) Chat(ctx context.Context, message string) string {
	s.mu.Lock()
	if s.chat == nil {
		s.chat = genai.OpenSession(s.client, s.shoppingSystemInstruction())
	}
	session := s.chat
	s.mu.Unlock()

	start := time.Now()
	reply, err := session.Send(ctx, message)
	s.recordLatency(time.Since(start))
	if err != nil {
		s.logDegraded("chat", err)
		return fallbackChatError
	}
	if strings.TrimSpace(reply) == "" {
		return fallbackChatEmpty
	}
	return reply
}

// ResetChat はチャットセッションを破棄する。次のChatで新規セッションが開かれる。
func (s *Service) ResetChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = nil
}

// SuggestCaption はトピックからソーシャル投稿のキャプションを生成する。
// 失敗時はフォールバック文字列を返す。
func (s *Service) SuggestCaption(ctx context.Context, topic string) string {
	prompt := fmt.Sprintf(`Write a short, engaging social media post caption about: %s.
Include 2-3 relevant hashtags. Keep it under 280 characters.
Tone: Casual and friendly.`, topic)

	start := time.Now()
	text, err := s.client.Complete(ctx, prompt, "")
	s.recordLatency(time.Since(start))
	if err != nil {
		s.logDegraded("caption", err)
		return fallbackCaption
	}
	if strings.TrimSpace(text) == "" {
		return fallbackCaptionNone
	}
	return text
}

// EnhanceBio は既存のbioをより洗練された文面に書き換える。
// 失敗時は元のbioをそのまま返す。
func (s *Service) EnhanceBio(ctx context.Context, currentBio string) string {
	prompt := fmt.Sprintf(`Rewrite the following social media bio to be more professional yet approachable.
Keep it concise (under 150 characters).
Current Bio: %q`, currentBio)

	start := time.Now()
	text, err := s.client.Complete(ctx, prompt, "")
	s.recordLatency(time.Since(start))
	if err != nil {
		s.logDegraded("bio", err)
		return currentBio
	}
	if strings.TrimSpace(text) == "" {
		return currentBio
	}
	return text
}

// shoppingSystemInstruction はカタログ在庫を埋め込んだシステム指示を組み立てる。
func (s *Service) shoppingSystemInstruction() string {
	var b strings.Builder
	for _, p := range s.catalog.List() {
		fmt.Fprintf(&b, "- %s ($%.2f): %s\n", p.Name, p.Price, p.Description)
	}

	return fmt.Sprintf(`You are a helpful and enthusiastic shopping assistant for CodeAlpha Store, a tech e-commerce shop.

Here is our current product inventory:
%s
Your goal is to help customers find products, answer questions about specifications, and suggest items based on their needs.
- Be concise and friendly.
- If a user asks about a product we don't have, politely suggest a similar alternative from our inventory if possible, or state we don't carry it.
- Do not invent products that are not in the list.
- You can use emojis to be expressive.
`, b.String())
}

func (s *Service) recordLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCompletionLatency(d)
	}
}

func (s *Service) logDegraded(feature string, err error) {
	if s.metrics != nil {
		s.metrics.RecordCompletionFallback(feature)
	}
	if s.logger != nil {
		s.logger.Warn("生成テキストAPIが失敗したためフォールバックに縮退します",
			slog.String("feature", feature),
			slog.String("error", err.Error()),
		)
	}
}
