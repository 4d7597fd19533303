package store

import (
	"time"

	"github.com/hitoshi/agora/internal/model"
)

// seed はソーシャルアプリのシードデータ（ユーザー3名と投稿3件）を投入する。
// シードデータの内容はデモ固定。IDは安定しておりテストからも参照される。
func (s *Store) seed() {
	now := s.now()

	users := []*model.User{
		{
			ID:        "u1",
			Username:  "tech_guru",
			Name:      "Alex Rivera",
			Bio:       "Building the future one line of code at a time. 🚀",
			AvatarURL: "https://picsum.photos/seed/u1/200/200",
			Followers: idSet("u2", "u3"),
			Following: idSet("u2"),
			CreatedAt: now,
		},
		{
			ID:        "u2",
			Username:  "travel_lens",
			Name:      "Sarah Chen",
			Bio:       "Wanderlust | Photography | Coffee ☕️",
			AvatarURL: "https://picsum.photos/seed/u2/200/200",
			Followers: idSet("u1"),
			Following: idSet("u1", "u3"),
			CreatedAt: now,
		},
		{
			ID:        "u3",
			Username:  "design_daily",
			Name:      "Marcus Johnson",
			Bio:       "UI/UX Designer. Minimalist.",
			AvatarURL: "https://picsum.photos/seed/u3/200/200",
			Followers: idSet("u2"),
			Following: idSet("u1"),
			CreatedAt: now,
		},
	}
	for _, u := range users {
		s.users = append(s.users, u)
		s.usersByID[u.ID] = u
		s.usersByUsername[u.Username] = u
	}

	posts := []*model.Post{
		{
			ID:       "p1",
			AuthorID: "u1",
			Content:  "Just deployed my first React Native app! The journey was tough but worth it. #coding #reactnative",
			ImageURL: "https://picsum.photos/seed/p1/800/600",
			Likes:    idSet("u2", "u3"),
			Comments: []model.Comment{
				{
					ID:        "c1",
					PostID:    "p1",
					AuthorID:  "u2",
					Text:      "Congrats Alex! Looks amazing.",
					CreatedAt: now.Add(-1 * time.Hour),
				},
			},
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID:        "p2",
			AuthorID:  "u2",
			Content:   "Sunset in Kyoto. No filters needed.",
			ImageURL:  "https://picsum.photos/seed/p2/800/600",
			Likes:     idSet("u1"),
			Comments:  make([]model.Comment, 0),
			CreatedAt: now.Add(-24 * time.Hour),
		},
		{
			ID:        "p3",
			AuthorID:  "u3",
			Content:   "Thinking about the impact of typography on user retention. What are your favorite font pairings?",
			Likes:     make(map[string]struct{}),
			Comments:  make([]model.Comment, 0),
			CreatedAt: now.Add(-100 * time.Second),
		},
	}
	for _, p := range posts {
		s.postSeq++
		p.Seq = s.postSeq
		s.posts = append(s.posts, p)
		s.postsByID[p.ID] = p
	}
}

// AdoptPersisted は起動時に永続化層からロードした状態を取り込む。
// チェックポイントは発火しない（ロード直後の冗長書き込みを避ける）。
// カート行はカタログ照合済み・数量正のもののみ呼び出し側が渡すこと。
func (s *Store) AdoptPersisted(cart []model.CartLine, session *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cart != nil {
		s.cart = make([]model.CartLine, len(cart))
		copy(s.cart, cart)
	}
	if session != nil {
		s.session = session.Clone()
	}
}

func idSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
