// Package store はドメイン状態の単一所有者ストアを提供する。
// カート・アクティブアイデンティティ・ユーザーグラフ・投稿列といった可変
// コレクションはすべてこのストアが排他的に所有し、変更はコマンドメソッド
// 経由でのみ行える。呼び出し側はクエリで得たスナップショットを変更しては
// ならない（スナップショットは常にコピーで返す）。
//
// すべてのコマンドはvalidate-then-applyで実装する: 検証に失敗したコマンドは
// 状態を一切変更しない。コマンドはミューテックスで直列化され、単一ライター
// 規律を実スレッド環境でも維持する。
package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/agora/internal/catalog"
	"github.com/hitoshi/agora/internal/model"
)

// Checkpointer はカートとアイデンティティのチェックポイント保存インターフェース。
// 変更コマンドの成功直後に呼び出されるライトスルー方式。
type Checkpointer interface {
	// SaveCart はカート全体を保存する。
	SaveCart(ctx context.Context, cart []model.CartLine) error
	// SaveSession はアクティブアイデンティティを保存する。nilはログアウト状態を表す。
	SaveSession(ctx context.Context, session *model.Session) error
}

// TextSanitizer はユーザー入力テキストのサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// ImageURLValidator はユーザー指定の画像URLの事前検証インターフェース。
type ImageURLValidator interface {
	ValidateURL(rawURL string) error
}

// CheckpointMetrics はチェックポイント失敗の記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type CheckpointMetrics interface {
	RecordCheckpointFailure(key string)
}

// Store はドメイン状態ストア。
type Store struct {
	mu sync.Mutex

	catalog *catalog.Catalog

	cart    []model.CartLine // 挿入順を保持する。順序は表示専用で正しさには関与しない。
	session *model.Session

	users           []*model.User
	usersByID       map[string]*model.User
	usersByUsername map[string]*model.User

	posts     []*model.Post // 先頭が最新（most-recent-first格納）
	postsByID map[string]*model.Post
	postSeq   uint64

	checkpoint Checkpointer      // nil可
	sanitizer  TextSanitizer     // nil可
	urlGuard   ImageURLValidator // nil可
	metrics    CheckpointMetrics // nil可

	now func() time.Time
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithCheckpointer はチェックポイント保存先を設定する。
func WithCheckpointer(c Checkpointer) Option {
	return func(s *Store) { s.checkpoint = c }
}

// WithSanitizer はユーザーテキストのサニタイザを設定する。
func WithSanitizer(ts TextSanitizer) Option {
	return func(s *Store) { s.sanitizer = ts }
}

// WithImageURLValidator は画像URLの検証器を設定する。
func WithImageURLValidator(v ImageURLValidator) Option {
	return func(s *Store) { s.urlGuard = v }
}

// WithMetrics はチェックポイント失敗のメトリクス記録先を設定する。
func WithMetrics(m CheckpointMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock は時刻源を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New はシードデータ入りのStoreを生成する。
func New(cat *catalog.Catalog, opts ...Option) *Store {
	s := &Store{
		catalog:         cat,
		cart:            make([]model.CartLine, 0),
		usersByID:       make(map[string]*model.User),
		usersByUsername: make(map[string]*model.User),
		postsByID:       make(map[string]*model.Post),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()
	return s
}

// --- カートコマンド ---

// AddToCart は商品をカートに追加する。
// 既存行があれば数量を1増やし、なければ数量1の新規行を挿入する。
// カタログに存在しない商品IDの場合はPRODUCT_NOT_FOUNDを返す。
func (s *Store) AddToCart(ctx context.Context, productID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog.FindByID(productID) == nil {
		return model.NewProductNotFoundError(productID)
	}

	for i := range s.cart {
		if s.cart[i].ProductID == productID {
			s.cart[i].Quantity++
			s.checkpointCart(ctx)
			return nil
		}
	}

	s.cart = append(s.cart, model.CartLine{ProductID: productID, Quantity: 1})
	s.checkpointCart(ctx)
	return nil
}

// SetQuantity はカート行の数量を設定する。
// qtyが0以下の場合は行を削除する。qtyが正で該当行が存在しない場合は
// CART_LINE_NOT_FOUNDを返す（このエントリポイントからの暗黙の行作成はしない）。
func (s *Store) SetQuantity(ctx context.Context, productID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		s.removeLineLocked(ctx, productID)
		return nil
	}

	for i := range s.cart {
		if s.cart[i].ProductID == productID {
			s.cart[i].Quantity = qty
			s.checkpointCart(ctx)
			return nil
		}
	}
	return model.NewCartLineNotFoundError(productID)
}

// RemoveFromCart はカート行を削除する。存在しない場合は何もしない（エラーではない）。
func (s *Store) RemoveFromCart(ctx context.Context, productID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLineLocked(ctx, productID)
}

// ClearCart はカートを無条件で空にする。
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = s.cart[:0]
	s.checkpointCart(ctx)
}

// Checkout はチェックアウトを実行する。
// アクティブアイデンティティが必要。空カートはEMPTY_CARTを返す。
// 成功時はカートを空にし、注文合計とクリア前のカート行（ロールバック用の
// 記録済みデルタ）を返す。ログアウトはカートを保持するのに対し、
// チェックアウトはカートをクリアする。
func (s *Store) Checkout(ctx context.Context) (float64, []model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return 0, nil, model.NewUnauthenticatedError()
	}
	if len(s.cart) == 0 {
		return 0, nil, model.NewEmptyCartError()
	}

	var total float64
	for _, line := range s.cart {
		if p := s.catalog.FindByID(line.ProductID); p != nil {
			total += p.Price * float64(line.Quantity)
		}
	}

	cleared := make([]model.CartLine, len(s.cart))
	copy(cleared, s.cart)
	s.cart = s.cart[:0]
	s.checkpointCart(ctx)

	return total, cleared, nil
}

// RestoreCart はカート行を復元する。チェックアウト失敗時のロールバック専用。
// 復元は現在のライブ状態への加算マージで行う: ロールバック到着前に追加された
// 行は失われない。
func (s *Store) RestoreCart(ctx context.Context, lines []model.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, restored := range lines {
		merged := false
		for i := range s.cart {
			if s.cart[i].ProductID == restored.ProductID {
				s.cart[i].Quantity += restored.Quantity
				merged = true
				break
			}
		}
		if !merged {
			s.cart = append(s.cart, restored)
		}
	}
	s.checkpointCart(ctx)
}

// --- アイデンティティコマンド ---

// Login はストアフロントのログインを実行する。
// 認証は行わず、新しいアイデンティティを生成してアクティブにする
// （既存のアイデンティティは置き換えられる）。
func (s *Store) Login(ctx context.Context, email, name string) (*model.Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.NewEmptyTextError("name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &model.Session{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	}
	s.checkpointSession(ctx)
	return s.session.Clone(), nil
}

// LoginAs はソーシャルアプリのログインを実行する。
// 既存ユーザーをユーザー名で解決し、アクティブアイデンティティにする。
// 該当ユーザーがいない場合はUSER_NOT_FOUNDを返す。
func (s *Store) LoginAs(ctx context.Context, username string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return nil, model.NewUserNotFoundError(username)
	}

	s.session = &model.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      u.Name,
		CreatedAt: s.now(),
	}
	s.checkpointSession(ctx)
	return s.session.Clone(), nil
}

// Signup は新規ユーザーを作成してアクティブアイデンティティにする。
// フォロワー/フォロー中は空集合、bioはデフォルト文で初期化する。
// ユーザー名が既に存在する場合はUSERNAME_TAKENを返す。
func (s *Store) Signup(ctx context.Context, name, username string) (*model.Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.NewEmptyTextError("name")
	}
	if strings.TrimSpace(username) == "" {
		return nil, model.NewEmptyTextError("username")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return nil, model.NewUsernameTakenError(username)
	}

	u := &model.User{
		ID:        uuid.NewString(),
		Username:  username,
		Name:      name,
		Bio:       "New to SocialSphere!",
		AvatarURL: "https://picsum.photos/seed/" + username + "/200/200",
		Followers: make(map[string]struct{}),
		Following: make(map[string]struct{}),
		CreatedAt: s.now(),
	}
	s.users = append(s.users, u)
	s.usersByID[u.ID] = u
	s.usersByUsername[u.Username] = u

	s.session = &model.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      u.Name,
		CreatedAt: s.now(),
	}
	s.checkpointSession(ctx)
	return s.session.Clone(), nil
}

// Logout はアクティブアイデンティティを破棄する。
// ストアフロント仕様に従い、カートはクリアしない（チェックアウトとは異なる）。
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.checkpointSession(ctx)
}

// --- ソーシャルグラフコマンド ---

// ToggleFollow はフォロー関係をトグルする。
// targetIDのself.Followingへの所属とselfIDのtarget.Followersへの所属を
// 1つの論理操作として同時に反転する（対称性不変条件）。
// selfID == targetIDの場合はSELF_FOLLOW、どちらかのIDが未知の場合は
// USER_NOT_FOUNDを返す。戻り値は操作後にフォロー中かどうか。
func (s *Store) ToggleFollow(ctx context.Context, selfID, targetID string) (bool, error) {
	if selfID == targetID {
		return false, model.NewSelfFollowError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	self, ok := s.usersByID[selfID]
	if !ok {
		return false, model.NewUserNotFoundError(selfID)
	}
	target, ok := s.usersByID[targetID]
	if !ok {
		return false, model.NewUserNotFoundError(targetID)
	}

	if _, following := self.Following[targetID]; following {
		delete(self.Following, targetID)
		delete(target.Followers, selfID)
		return false, nil
	}
	self.Following[targetID] = struct{}{}
	target.Followers[selfID] = struct{}{}
	return true, nil
}

// ToggleLike は投稿へのいいねをトグルする。
// 集合メンバーシップの反転のため2回適用で元に戻る（対合）。
// 戻り値は操作後にいいね済みかどうか。
func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postsByID[postID]
	if !ok {
		return false, model.NewPostNotFoundError(postID)
	}
	if _, ok := s.usersByID[userID]; !ok {
		return false, model.NewUserNotFoundError(userID)
	}

	if _, liked := p.Likes[userID]; liked {
		delete(p.Likes, userID)
		return false, nil
	}
	p.Likes[userID] = struct{}{}
	return true, nil
}

// AddComment は投稿にコメントを追記する。
// 空または空白のみのテキストはEMPTY_TEXTを返し、投稿は変更されない。
// 成功時は新しいIDと現在時刻を持つコメントを返す。
func (s *Store) AddComment(ctx context.Context, postID, userID, text string) (*model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewEmptyTextError("comment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postsByID[postID]
	if !ok {
		return nil, model.NewPostNotFoundError(postID)
	}
	if _, ok := s.usersByID[userID]; !ok {
		return nil, model.NewUserNotFoundError(userID)
	}

	c := model.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  userID,
		Text:      s.sanitize(text),
		CreatedAt: s.now(),
	}
	p.Comments = append(p.Comments, c)
	return &c, nil
}

// RemoveComment は指定コメントを投稿から取り除く。
// 楽観的更新のロールバック専用。見つからない場合はCOMMENT_NOT_FOUNDを返す
// （ロールバック到着前に投稿ごと削除されたケース）。
func (s *Store) RemoveComment(ctx context.Context, postID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postsByID[postID]
	if !ok {
		return model.NewPostNotFoundError(postID)
	}
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			return nil
		}
	}
	return model.NewCommentNotFoundError(commentID)
}

// CreatePost は新規投稿をグローバル投稿列の先頭に挿入する。
// 空コンテンツはEMPTY_TEXT。画像URLが指定されている場合は事前に検証する。
func (s *Store) CreatePost(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.NewEmptyTextError("content")
	}
	if imageURL != "" && s.urlGuard != nil {
		if err := s.urlGuard.ValidateURL(imageURL); err != nil {
			return nil, model.NewInvalidImageURLError(err.Error())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[userID]; !ok {
		return nil, model.NewUserNotFoundError(userID)
	}

	s.postSeq++
	p := &model.Post{
		ID:        uuid.NewString(),
		AuthorID:  userID,
		Content:   s.sanitize(content),
		ImageURL:  imageURL,
		Likes:     make(map[string]struct{}),
		Comments:  make([]model.Comment, 0),
		CreatedAt: s.now(),
		Seq:       s.postSeq,
	}
	s.posts = append([]*model.Post{p}, s.posts...)
	s.postsByID[p.ID] = p
	return p.Clone(), nil
}

// DeletePost は投稿を削除する。楽観的更新のロールバック専用。
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postsByID[postID]; !ok {
		return model.NewPostNotFoundError(postID)
	}
	delete(s.postsByID, postID)
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateBio はユーザーのbioを無条件に置き換える。
// 戻り値は置き換え前のbio（ロールバック用の記録済みデルタ）。
func (s *Store) UpdateBio(ctx context.Context, userID, newBio string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[userID]
	if !ok {
		return "", model.NewUserNotFoundError(userID)
	}
	prev := u.Bio
	u.Bio = s.sanitize(newBio)
	return prev, nil
}

// --- クエリ ---

// Cart はカートのスナップショットを挿入順で返す。
func (s *Store) Cart() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CartLine, len(s.cart))
	copy(out, s.cart)
	return out
}

// Session はアクティブアイデンティティのスナップショットを返す。未ログイン時はnil。
func (s *Store) Session() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Users は全ユーザーのスナップショットを登録順で返す。
func (s *Store) Users() []*model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	return out
}

// FindUserByID は指定IDのユーザーのスナップショットを返す。見つからない場合はnil。
func (s *Store) FindUserByID(id string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.usersByID[id]; ok {
		return u.Clone()
	}
	return nil
}

// FindUserByUsername は指定ユーザー名のユーザーのスナップショットを返す。
// 見つからない場合はnil。
func (s *Store) FindUserByUsername(username string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.usersByUsername[username]; ok {
		return u.Clone()
	}
	return nil
}

// Posts は全投稿のスナップショットを格納順（先頭が最新）で返す。
func (s *Store) Posts() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p.Clone())
	}
	return out
}

// FindPost は指定IDの投稿のスナップショットを返す。見つからない場合はnil。
func (s *Store) FindPost(postID string) *model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.postsByID[postID]; ok {
		return p.Clone()
	}
	return nil
}

// --- 内部ヘルパー ---

// removeLineLocked は指定商品の行を削除する。ロック保持中に呼ぶこと。
func (s *Store) removeLineLocked(ctx context.Context, productID int) {
	for i := range s.cart {
		if s.cart[i].ProductID == productID {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			s.checkpointCart(ctx)
			return
		}
	}
}

// checkpointCart はカートのライトスルーチェックポイントを実行する。
// 保存失敗はログのみで呼び出し元には伝播しない（コマンド自体は成功している）。
func (s *Store) checkpointCart(ctx context.Context) {
	if s.checkpoint == nil {
		return
	}
	snapshot := make([]model.CartLine, len(s.cart))
	copy(snapshot, s.cart)
	if err := s.checkpoint.SaveCart(ctx, snapshot); err != nil {
		slog.Error("カートのチェックポイント保存に失敗しました",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordCheckpointFailure("cart")
		}
	}
}

// checkpointSession はアイデンティティのライトスルーチェックポイントを実行する。
func (s *Store) checkpointSession(ctx context.Context) {
	if s.checkpoint == nil {
		return
	}
	if err := s.checkpoint.SaveSession(ctx, s.session.Clone()); err != nil {
		slog.Error("セッションのチェックポイント保存に失敗しました",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordCheckpointFailure("session")
		}
	}
}

// sanitize はサニタイザが設定されていればテキストを浄化する。
func (s *Store) sanitize(text string) string {
	if s.sanitizer == nil {
		return text
	}
	return s.sanitizer.Sanitize(text)
}
