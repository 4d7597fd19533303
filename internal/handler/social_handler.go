package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agora/internal/middleware"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/view"
)

// SocialServiceInterface はソーシャルハンドラーが必要とするストアインターフェース。
// store.Storeの部分集合として定義する。
type SocialServiceInterface interface {
	Users() []*model.User
	FindUserByID(id string) *model.User
	Posts() []*model.Post
	ToggleFollow(ctx context.Context, selfID, targetID string) (bool, error)
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, postID, userID, text string) (*model.Comment, error)
	RemoveComment(ctx context.Context, postID, commentID string) error
	CreatePost(ctx context.Context, userID, content, imageURL string) (*model.Post, error)
	DeletePost(ctx context.Context, postID string) error
	UpdateBio(ctx context.Context, userID, newBio string) (string, error)
}

// SocialHandler はソーシャルフィードのHTTPハンドラー。
type SocialHandler struct {
	service    SocialServiceInterface
	optimistic OptimisticExecutor
	metrics    CommandMetrics
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialServiceInterface, optimistic OptimisticExecutor, metrics CommandMetrics) *SocialHandler {
	return &SocialHandler{
		service:    service,
		optimistic: optimistic,
		metrics:    metrics,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// addCommentRequest はコメント追加リクエストのボディ。
type addCommentRequest struct {
	Text string `json:"text"`
}

// updateBioRequest は自己紹介更新リクエストのボディ。
type updateBioRequest struct {
	Bio string `json:"bio"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	AvatarURL string   `json:"avatar_url"`
	Followers []string `json:"followers"`
	Following []string `json:"following"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string            `json:"id"`
	AuthorID  string            `json:"author_id"`
	Content   string            `json:"content"`
	ImageURL  string            `json:"image_url,omitempty"`
	Likes     []string          `json:"likes"`
	Comments  []commentResponse `json:"comments"`
	CreatedAt time.Time         `json:"created_at"`
}

// profileResponse はプロフィール集約のAPIレスポンス。
type profileResponse struct {
	User  userResponse   `json:"user"`
	Posts []postResponse `json:"posts"`
}

// toggleResponse はトグル操作の結果レスポンス。
type toggleResponse struct {
	Active bool `json:"active"`
}

// GetFeed はログイン中のユーザーのホームフィードを返す。
// 自分とフォロー中のユーザーの投稿を新しい順に含む。
// GET /api/feed
func (h *SocialHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user := h.service.FindUserByID(userID)
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	posts := view.FeedFor(user, h.service.Posts())
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// GetExplore は全投稿を新しい順に返す。認証不要。
// GET /api/explore
func (h *SocialHandler) GetExplore(w http.ResponseWriter, r *http.Request) {
	posts := view.ExploreFeed(h.service.Posts())
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// GetProfile はユーザー名からプロフィール集約を返す。認証不要。
// GET /api/profiles/:username
func (h *SocialHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := view.ProfileAggregate(h.service.Users(), h.service.Posts(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		User:  toUserResponse(profile.User),
		Posts: toPostResponses(profile.Posts),
	})
}

// SearchUsers はユーザー名・表示名の部分一致でユーザーを検索する。認証不要。
// GET /api/users?q=
func (h *SocialHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	users := view.SearchUsers(h.service.Users(), query)

	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, results)
}

// CreatePost は新規投稿を作成する。
// バックエンド確定が失敗した場合は投稿を削除して巻き戻す。
// POST /api/posts
func (h *SocialHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createPostRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var post *model.Post
	apply := func() error {
		var err error
		post, err = h.service.CreatePost(r.Context(), userID, req.Content, req.ImageURL)
		return err
	}
	revert := func() {
		_ = h.service.DeletePost(context.Background(), post.ID)
	}

	recordCommand(h.metrics, "create_post")
	if err := h.optimistic.Execute(r.Context(), "create_post", apply, revert); err != nil {
		recordFailure(h.metrics, "create_post", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/:id
func (h *SocialHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	recordCommand(h.metrics, "delete_post")
	if err := h.service.DeletePost(r.Context(), postID); err != nil {
		recordFailure(h.metrics, "delete_post", err)
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike は投稿へのいいねをトグルする。
// バックエンド確定が失敗した場合は再度トグルして巻き戻す。
// POST /api/posts/:id/like
func (h *SocialHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	postID := chi.URLParam(r, "id")

	var liked bool
	apply := func() error {
		var err error
		liked, err = h.service.ToggleLike(r.Context(), postID, userID)
		return err
	}
	revert := func() {
		// トグルは自己逆元なので、もう一度適用すれば元に戻る
		_, _ = h.service.ToggleLike(context.Background(), postID, userID)
	}

	recordCommand(h.metrics, "toggle_like")
	if err := h.optimistic.Execute(r.Context(), "toggle_like", apply, revert); err != nil {
		recordFailure(h.metrics, "toggle_like", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{Active: liked})
}

// AddComment は投稿にコメントを追加する。
// バックエンド確定が失敗した場合はコメントを削除して巻き戻す。
// POST /api/posts/:id/comments
func (h *SocialHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	postID := chi.URLParam(r, "id")

	var req addCommentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var comment *model.Comment
	apply := func() error {
		var err error
		comment, err = h.service.AddComment(r.Context(), postID, userID, req.Text)
		return err
	}
	revert := func() {
		_ = h.service.RemoveComment(context.Background(), postID, comment.ID)
	}

	recordCommand(h.metrics, "add_comment")
	if err := h.optimistic.Execute(r.Context(), "add_comment", apply, revert); err != nil {
		recordFailure(h.metrics, "add_comment", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(*comment))
}

// ToggleFollow は対象ユーザーへのフォローをトグルする。
// バックエンド確定が失敗した場合は再度トグルして巻き戻す。
// POST /api/users/:id/follow
func (h *SocialHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	targetID := chi.URLParam(r, "id")

	var following bool
	apply := func() error {
		var err error
		following, err = h.service.ToggleFollow(r.Context(), userID, targetID)
		return err
	}
	revert := func() {
		_, _ = h.service.ToggleFollow(context.Background(), userID, targetID)
	}

	recordCommand(h.metrics, "toggle_follow")
	if err := h.optimistic.Execute(r.Context(), "toggle_follow", apply, revert); err != nil {
		recordFailure(h.metrics, "toggle_follow", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{Active: following})
}

// UpdateBio はログイン中のユーザーの自己紹介を更新する。
// バックエンド確定が失敗した場合は元の自己紹介に巻き戻す。
// PUT /api/me/bio
func (h *SocialHandler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateBioRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var previous string
	apply := func() error {
		var err error
		previous, err = h.service.UpdateBio(r.Context(), userID, req.Bio)
		return err
	}
	revert := func() {
		_, _ = h.service.UpdateBio(context.Background(), userID, previous)
	}

	recordCommand(h.metrics, "update_bio")
	if err := h.optimistic.Execute(r.Context(), "update_bio", apply, revert); err != nil {
		recordFailure(h.metrics, "update_bio", err)
		handleServiceError(w, err)
		return
	}

	user := h.service.FindUserByID(userID)
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- ヘルパー関数 ---

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		Followers: u.FollowerIDs(),
		Following: u.FollowingIDs(),
	}
}

// toCommentResponse はmodel.CommentからAPIレスポンスに変換する。
func toCommentResponse(c model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(p *model.Post) postResponse {
	likes := make([]string, 0, len(p.Likes))
	for id := range p.Likes {
		likes = append(likes, id)
	}
	sort.Strings(likes)

	comments := make([]commentResponse, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = toCommentResponse(c)
	}

	return postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Likes:     likes,
		Comments:  comments,
		CreatedAt: p.CreatedAt,
	}
}

// toPostResponses は投稿のスライスをAPIレスポンスに変換する。
func toPostResponses(posts []*model.Post) []postResponse {
	results := make([]postResponse, len(posts))
	for i, p := range posts {
		results[i] = toPostResponse(p)
	}
	return results
}
