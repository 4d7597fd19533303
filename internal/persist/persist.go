// Package persist はドメインストアのチェックポイントをキーバリューストアへ
// 読み書きする永続化アダプタを提供する。
// 保存対象はカートとアクティブアイデンティティのみ。ライトスルー方式のため
// コマンド成功直後のクラッシュでも変更は失われない（冗長な書き込みは許容する）。
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/agora/internal/kvstore"
	"github.com/hitoshi/agora/internal/model"
)

// 永続化キー。
const (
	KeyCart    = "cart"
	KeySession = "session"
)

// ProductResolver はロード時のカート行検証に使うカタログ照合インターフェース。
type ProductResolver interface {
	FindByID(id int) *model.Product
}

// Adapter はキーバリューストアへのチェックポイント読み書きを行う。
// store.Checkpointerを実装する。
type Adapter struct {
	kv      kvstore.Store
	catalog ProductResolver
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(kv kvstore.Store, catalog ProductResolver) *Adapter {
	return &Adapter{
		kv:      kv,
		catalog: catalog,
	}
}

// cartRecord はカートのシリアライズ形式。
type cartRecord struct {
	Lines []cartLineRecord `json:"lines"`
}

type cartLineRecord struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// sessionRecord はアクティブアイデンティティのシリアライズ形式。
type sessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveCart はカート全体をJSONとして保存する。
func (a *Adapter) SaveCart(ctx context.Context, cart []model.CartLine) error {
	rec := cartRecord{Lines: make([]cartLineRecord, 0, len(cart))}
	for _, line := range cart {
		rec.Lines = append(rec.Lines, cartLineRecord{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("カートのシリアライズに失敗しました: %w", err)
	}
	return a.kv.Set(ctx, KeyCart, string(data))
}

// SaveSession はアクティブアイデンティティをJSONとして保存する。
// nil（ログアウト状態）の場合はキーを削除する。
func (a *Adapter) SaveSession(ctx context.Context, session *model.Session) error {
	if session == nil {
		return a.kv.Delete(ctx, KeySession)
	}

	rec := sessionRecord{
		ID:        session.ID,
		UserID:    session.UserID,
		Name:      session.Name,
		Email:     session.Email,
		CreatedAt: session.CreatedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("セッションのシリアライズに失敗しました: %w", err)
	}
	return a.kv.Set(ctx, KeySession, string(data))
}

// Load は起動時にチェックポイントを読み込む。
// キーと値が構造的に妥当な場合に限りデータを返す。不在・破損データは
// 空カート/匿名アイデンティティへのフォールバックとして扱い、
// 呼び出し元にエラーは返さない（ログのみ記録する）。
func (a *Adapter) Load(ctx context.Context) ([]model.CartLine, *model.Session) {
	return a.loadCart(ctx), a.loadSession(ctx)
}

// loadCart はカートのチェックポイントを読み込んで検証する。
// 数量が1未満の行やカタログに存在しない商品の行は不正データとみなし、
// カート全体を破棄して空カートへフォールバックする。
func (a *Adapter) loadCart(ctx context.Context) []model.CartLine {
	raw, ok, err := a.kv.Get(ctx, KeyCart)
	if err != nil {
		slog.Warn("カートのロードに失敗しました（空カートで継続）",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}

	var rec cartRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("カートのチェックポイントが破損しています（空カートで継続）",
			slog.String("error", err.Error()),
		)
		return nil
	}

	cart := make([]model.CartLine, 0, len(rec.Lines))
	seen := make(map[int]struct{}, len(rec.Lines))
	for _, line := range rec.Lines {
		if line.Quantity < 1 {
			slog.Warn("カートのチェックポイントに不正な数量があります（空カートで継続）",
				slog.Int("product_id", line.ProductID),
				slog.Int("quantity", line.Quantity),
			)
			return nil
		}
		if _, dup := seen[line.ProductID]; dup {
			slog.Warn("カートのチェックポイントに重複行があります（空カートで継続）",
				slog.Int("product_id", line.ProductID),
			)
			return nil
		}
		if a.catalog != nil && a.catalog.FindByID(line.ProductID) == nil {
			slog.Warn("カートのチェックポイントにカタログ外の商品があります（空カートで継続）",
				slog.Int("product_id", line.ProductID),
			)
			return nil
		}
		seen[line.ProductID] = struct{}{}
		cart = append(cart, model.CartLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return cart
}

// loadSession はアイデンティティのチェックポイントを読み込んで検証する。
func (a *Adapter) loadSession(ctx context.Context) *model.Session {
	raw, ok, err := a.kv.Get(ctx, KeySession)
	if err != nil {
		slog.Warn("セッションのロードに失敗しました（匿名で継続）",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("セッションのチェックポイントが破損しています（匿名で継続）",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if rec.ID == "" || rec.Name == "" {
		slog.Warn("セッションのチェックポイントに必須フィールドがありません（匿名で継続）")
		return nil
	}

	return &model.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Name:      rec.Name,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
	}
}
