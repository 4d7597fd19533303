// Package model はドメインモデルを定義する。
package model

import "time"

// Post はソーシャルアプリの投稿を表す。
// Likesは冪等な集合メンバーシップ（2回いいねしても効果は1回分）。
// Commentsは追記専用の時系列順シーケンス。
type Post struct {
	ID        string
	AuthorID  string // 既存のUserを参照する
	Content   string
	ImageURL  string
	Likes     map[string]struct{} // いいねしたユーザーID集合
	Comments  []Comment
	CreatedAt time.Time
	Seq       uint64 // プロセス内の単調な挿入順。タイムスタンプ同値時のソート安定化に使う。
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// Clone はPostの独立したコピーを返す。
// ビューに渡すスナップショット用。集合とコメント列もコピーされる。
func (p *Post) Clone() *Post {
	c := *p
	c.Likes = cloneIDSet(p.Likes)
	c.Comments = make([]Comment, len(p.Comments))
	copy(c.Comments, p.Comments)
	return &c
}

// LikedBy は指定ユーザーがこの投稿にいいね済みかを返す。
func (p *Post) LikedBy(userID string) bool {
	_, ok := p.Likes[userID]
	return ok
}

// LikeCount はいいね数を返す。
func (p *Post) LikeCount() int {
	return len(p.Likes)
}
