package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// defaultEndpoint はGemini generateContent APIのベースURL。
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// defaultModel はデフォルトの生成モデル。
	defaultModel = "gemini-2.5-flash"
	// maxResponseSize はレスポンスボディの最大サイズ（1MB）。
	maxResponseSize = 1 * 1024 * 1024
)

// GeminiClient はGemini APIのクライアント。Clientを実装する。
// ネイティブのgenerateContentエンドポイントを直接呼び出す。
type GeminiClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	model      string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewGeminiClient はGeminiClientの新しいインスタンスを生成する。
// httpClientがnilの場合はタイムアウト30秒のデフォルトクライアントを使う。
func NewGeminiClient(apiKey string, httpClient *http.Client, logger *slog.Logger) *GeminiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   defaultEndpoint,
	}
}

// SetModel は使用するモデルを変更する。空文字列の場合は何もしない。
func (c *GeminiClient) SetModel(model string) {
	if model != "" {
		c.model = model
	}
}

// --- Gemini APIのワイヤフォーマット ---

type geminiRequest struct {
	Contents          []geminiContent    `json:"contents"`
	SystemInstruction *geminiInstruction `json:"systemInstruction,omitempty"`
}

type geminiInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete は単発のプロンプト補完を実行する。
func (c *GeminiClient) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return c.generate(ctx, systemInstruction, []Turn{{Role: RoleUser, Text: prompt}})
}

// Converse はマルチターン会話の次の応答を生成する。
func (c *GeminiClient) Converse(ctx context.Context, systemInstruction string, turns []Turn) (string, error) {
	return c.generate(ctx, systemInstruction, turns)
}

// generate はgenerateContentエンドポイントを呼び出してテキストを取り出す。
func (c *GeminiClient) generate(ctx context.Context, systemInstruction string, turns []Turn) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini APIキーが設定されていません")
	}

	reqBody := geminiRequest{
		Contents: make([]geminiContent, 0, len(turns)),
	}
	for _, t := range turns {
		reqBody.Contents = append(reqBody.Contents, geminiContent{
			Role:  t.Role,
			Parts: []geminiPart{{Text: t.Text}},
		})
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &geminiInstruction{
			Parts: []geminiPart{{Text: systemInstruction}},
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
	}

	// エンドポイント形式: /models/{model}:generateContent?key={api_key}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logError("Gemini APIの呼び出しに失敗しました", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if c.logger != nil {
			c.logger.Error("Gemini APIがエラーステータスを返しました",
				slog.Int("http_status", resp.StatusCode),
			)
		}
		return "", fmt.Errorf("gemini APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logError("レスポンスボディの読み取りに失敗しました", err)
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logError("Gemini APIのレスポンスのパースに失敗しました", err)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini APIのレスポンスに候補がありません")
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

func (c *GeminiClient) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, slog.String("error", err.Error()))
	}
}
