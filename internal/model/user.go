// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"time"
)

// User はソーシャルアプリのユーザーを表す。
// FollowersとFollowingは対称なエッジとして維持される:
// AがB.Followingに含まれるなら、BはA.Followersに含まれる。
type User struct {
	ID        string
	Username  string // 一意かつ不変
	Name      string
	Bio       string
	AvatarURL string
	Followers map[string]struct{} // フォロワーのユーザーID集合
	Following map[string]struct{} // フォロー中のユーザーID集合
	CreatedAt time.Time
}

// Clone はUserの独立したコピーを返す。
// ビューに渡すスナップショット用。集合もコピーされる。
func (u *User) Clone() *User {
	c := *u
	c.Followers = cloneIDSet(u.Followers)
	c.Following = cloneIDSet(u.Following)
	return &c
}

// FollowerIDs はフォロワーIDの一覧を返す。順序は不定。
func (u *User) FollowerIDs() []string {
	return idSetToSlice(u.Followers)
}

// FollowingIDs はフォロー中IDの一覧を返す。順序は不定。
func (u *User) FollowingIDs() []string {
	return idSetToSlice(u.Following)
}

// Session はアクティブなアイデンティティを表す。
// ログイン/サインアップで生成され、ログアウトで破棄される。
// 同時に有効なアイデンティティは最大1つ。
type Session struct {
	ID        string
	UserID    string // ソーシャルユーザーに紐付く場合のみ設定
	Name      string
	Email     string
	CreatedAt time.Time
}

// Clone はSessionの独立したコピーを返す。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneIDSet(s map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func idSetToSlice(s map[string]struct{}) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
