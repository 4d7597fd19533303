// Package view はストア状態から計算される読み取り専用の派生ビューを提供する。
// すべて純粋関数として実装し、入力を変更しない。
// ビューは真実のソースにならない（常にストアのスナップショットから再計算する）。
package view

import (
	"sort"
	"strings"

	"github.com/hitoshi/agora/internal/model"
)

// FilteredProducts は商品名またはカテゴリに対する大文字小文字を区別しない
// 部分一致で商品を絞り込む。
// 空クエリは全カタログを元の順序で返す。一致なしは空スライスを返す（エラーにはならない）。
func FilteredProducts(products []model.Product, query string) []model.Product {
	if query == "" {
		out := make([]model.Product, len(products))
		copy(out, products)
		return out
	}

	q := strings.ToLower(query)
	out := make([]model.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

// FeedFor は指定ユーザー本人とフォロー中ユーザーの投稿を新しい順で返す。
// タイムスタンプが同値の場合は挿入順を保つ（安定ソート）。
func FeedFor(user *model.User, posts []*model.Post) []*model.Post {
	if user == nil {
		return []*model.Post{}
	}

	out := make([]*model.Post, 0)
	for _, p := range posts {
		if p.AuthorID == user.ID {
			out = append(out, p)
			continue
		}
		if _, ok := user.Following[p.AuthorID]; ok {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out
}

// ExploreFeed は全投稿をフォローフィルタなしで新しい順に返す。
func ExploreFeed(posts []*model.Post) []*model.Post {
	out := make([]*model.Post, len(posts))
	copy(out, posts)
	sortNewestFirst(out)
	return out
}

// Profile はユーザーとそのユーザーの投稿一覧を結合したプロフィール集約。
type Profile struct {
	User  *model.User
	Posts []*model.Post
}

// ProfileAggregate は指定ユーザー名のプロフィール集約を返す。
// 投稿はフィードと同じ新しい順。ユーザー名が解決できない場合はUSER_NOT_FOUNDを返す。
func ProfileAggregate(users []*model.User, posts []*model.Post, username string) (*Profile, error) {
	var target *model.User
	for _, u := range users {
		if u.Username == username {
			target = u
			break
		}
	}
	if target == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	own := make([]*model.Post, 0)
	for _, p := range posts {
		if p.AuthorID == target.ID {
			own = append(own, p)
		}
	}
	sortNewestFirst(own)

	return &Profile{User: target, Posts: own}, nil
}

// SearchUsers はユーザー名または表示名に対する大文字小文字を区別しない
// 部分一致でユーザーを検索する。
func SearchUsers(users []*model.User, query string) []*model.User {
	q := strings.ToLower(query)
	out := make([]*model.User, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Name), q) {
			out = append(out, u)
		}
	}
	return out
}

// CartSummary はカート行に商品情報と行合計・総計を付与した投影を返す。
// カタログに存在しない商品行は表示から除外する（カタログは不変のため通常発生しない）。
func CartSummary(products []model.Product, cart []model.CartLine) model.CartSummary {
	byID := make(map[int]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	summary := model.CartSummary{Lines: make([]model.CartLineView, 0, len(cart))}
	for _, line := range cart {
		p, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		lineTotal := p.Price * float64(line.Quantity)
		summary.Lines = append(summary.Lines, model.CartLineView{
			Product:   p,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
		summary.Total += lineTotal
	}
	return summary
}

// sortNewestFirst は投稿を作成時刻降順に安定ソートする。
// 同時刻の投稿はSeq（挿入順）の降順で並ぶ。
func sortNewestFirst(posts []*model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].Seq > posts[j].Seq
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
