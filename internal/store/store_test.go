package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/agora/internal/catalog"
	"github.com/hitoshi/agora/internal/model"
)

// mockCheckpointer は呼び出しを記録するCheckpointer実装。
type mockCheckpointer struct {
	saveCartFn    func(ctx context.Context, cart []model.CartLine) error
	saveSessionFn func(ctx context.Context, session *model.Session) error

	savedCarts    [][]model.CartLine
	savedSessions []*model.Session
}

func (m *mockCheckpointer) SaveCart(ctx context.Context, cart []model.CartLine) error {
	m.savedCarts = append(m.savedCarts, cart)
	if m.saveCartFn != nil {
		return m.saveCartFn(ctx, cart)
	}
	return nil
}

func (m *mockCheckpointer) SaveSession(ctx context.Context, session *model.Session) error {
	m.savedSessions = append(m.savedSessions, session)
	if m.saveSessionFn != nil {
		return m.saveSessionFn(ctx, session)
	}
	return nil
}

type mockCheckpointMetrics struct {
	failures []string
}

func (m *mockCheckpointMetrics) RecordCheckpointFailure(key string) {
	m.failures = append(m.failures, key)
}

type mockSanitizer struct {
	sanitizeFn func(raw string) string
}

func (m *mockSanitizer) Sanitize(raw string) string {
	return m.sanitizeFn(raw)
}

type mockURLValidator struct {
	validateFn func(rawURL string) error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	return m.validateFn(rawURL)
}

func newTestStore(opts ...Option) *Store {
	return New(catalog.New(), opts...)
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- カートコマンド ---

func TestAddToCart_NewLine(t *testing.T) {
	s := newTestStore()

	if err := s.AddToCart(context.Background(), 1); err != nil {
		t.Fatalf("AddToCart returned error: %v", err)
	}

	cart := s.Cart()
	if len(cart) != 1 {
		t.Fatalf("cart length = %d, want 1", len(cart))
	}
	if cart[0].ProductID != 1 || cart[0].Quantity != 1 {
		t.Errorf("cart[0] = %+v, want {ProductID:1 Quantity:1}", cart[0])
	}
}

func TestAddToCart_IncrementsExistingLine(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.AddToCart(ctx, 1)
	s.AddToCart(ctx, 2)
	s.AddToCart(ctx, 1)

	cart := s.Cart()
	if len(cart) != 2 {
		t.Fatalf("cart length = %d, want 2", len(cart))
	}
	// 挿入順を保つ
	if cart[0].ProductID != 1 || cart[0].Quantity != 2 {
		t.Errorf("cart[0] = %+v, want {ProductID:1 Quantity:2}", cart[0])
	}
	if cart[1].ProductID != 2 || cart[1].Quantity != 1 {
		t.Errorf("cart[1] = %+v, want {ProductID:2 Quantity:1}", cart[1])
	}
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	s := newTestStore()

	err := s.AddToCart(context.Background(), 999)
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)

	if len(s.Cart()) != 0 {
		t.Error("cart should remain empty after failed add")
	}
}

func TestSetQuantity_UpdatesLine(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddToCart(ctx, 1)

	if err := s.SetQuantity(ctx, 1, 5); err != nil {
		t.Fatalf("SetQuantity returned error: %v", err)
	}
	if got := s.Cart()[0].Quantity; got != 5 {
		t.Errorf("quantity = %d, want 5", got)
	}
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddToCart(ctx, 1)

	if err := s.SetQuantity(ctx, 1, 0); err != nil {
		t.Fatalf("SetQuantity(0) returned error: %v", err)
	}
	if len(s.Cart()) != 0 {
		t.Error("line should be removed when quantity <= 0")
	}
}

func TestSetQuantity_MissingLine(t *testing.T) {
	s := newTestStore()

	err := s.SetQuantity(context.Background(), 1, 3)
	assertAPIErrorCode(t, err, model.ErrCodeCartLineNotFound)
}

func TestRemoveFromCart_MissingLineIsNoop(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddToCart(ctx, 1)

	s.RemoveFromCart(ctx, 999)

	if len(s.Cart()) != 1 {
		t.Error("removing a missing line should not affect the cart")
	}
}

func TestClearCart(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddToCart(ctx, 1)
	s.AddToCart(ctx, 2)

	s.ClearCart(ctx)

	if len(s.Cart()) != 0 {
		t.Error("cart should be empty after ClearCart")
	}
}

func TestCheckout_RequiresSession(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.AddToCart(ctx, 1)

	_, _, err := s.Checkout(ctx)
	assertAPIErrorCode(t, err, model.ErrCodeUnauthenticated)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Login(ctx, "alice@example.com", "Alice")

	_, _, err := s.Checkout(ctx)
	assertAPIErrorCode(t, err, model.ErrCodeEmptyCart)
}

func TestCheckout_ClearsCartAndReturnsTotal(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Login(ctx, "alice@example.com", "Alice")
	s.AddToCart(ctx, 1) // 149.99
	s.AddToCart(ctx, 1) // qty 2
	s.AddToCart(ctx, 5) // 129.99

	total, cleared, err := s.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	want := 149.99*2 + 129.99
	if total != want {
		t.Errorf("total = %f, want %f", total, want)
	}
	if len(cleared) != 2 {
		t.Errorf("cleared lines = %d, want 2", len(cleared))
	}
	if len(s.Cart()) != 0 {
		t.Error("cart should be empty after checkout")
	}
}

func TestRestoreCart_MergesIntoLiveState(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Login(ctx, "alice@example.com", "Alice")
	s.AddToCart(ctx, 1)

	_, cleared, err := s.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	// ロールバック到着前に同じ商品と別の商品が追加されたケース
	s.AddToCart(ctx, 1)
	s.AddToCart(ctx, 2)

	s.RestoreCart(ctx, cleared)

	cart := s.Cart()
	if len(cart) != 2 {
		t.Fatalf("cart length = %d, want 2", len(cart))
	}
	if cart[0].ProductID != 1 || cart[0].Quantity != 2 {
		t.Errorf("cart[0] = %+v, want {ProductID:1 Quantity:2}", cart[0])
	}
	if cart[1].ProductID != 2 || cart[1].Quantity != 1 {
		t.Errorf("cart[1] = %+v, want {ProductID:2 Quantity:1}", cart[1])
	}
}

// --- チェックポイント ---

func TestCartCommands_CheckpointWriteThrough(t *testing.T) {
	cp := &mockCheckpointer{}
	s := newTestStore(WithCheckpointer(cp))
	ctx := context.Background()

	s.AddToCart(ctx, 1)
	s.SetQuantity(ctx, 1, 3)
	s.ClearCart(ctx)

	if len(cp.savedCarts) != 3 {
		t.Fatalf("SaveCart calls = %d, want 3", len(cp.savedCarts))
	}
	last := cp.savedCarts[len(cp.savedCarts)-1]
	if len(last) != 0 {
		t.Errorf("last checkpoint should be the empty cart, got %+v", last)
	}
}

func TestSessionCommands_CheckpointWriteThrough(t *testing.T) {
	cp := &mockCheckpointer{}
	s := newTestStore(WithCheckpointer(cp))
	ctx := context.Background()

	s.Login(ctx, "alice@example.com", "Alice")
	s.Logout(ctx)

	if len(cp.savedSessions) != 2 {
		t.Fatalf("SaveSession calls = %d, want 2", len(cp.savedSessions))
	}
	if cp.savedSessions[0] == nil || cp.savedSessions[0].Name != "Alice" {
		t.Errorf("first checkpoint session = %+v, want Alice", cp.savedSessions[0])
	}
	if cp.savedSessions[1] != nil {
		t.Errorf("logout checkpoint should persist nil session, got %+v", cp.savedSessions[1])
	}
}

func TestCheckpointFailure_DoesNotFailCommandAndRecordsMetric(t *testing.T) {
	cp := &mockCheckpointer{
		saveCartFn: func(ctx context.Context, cart []model.CartLine) error {
			return errors.New("kv unavailable")
		},
	}
	m := &mockCheckpointMetrics{}
	s := newTestStore(WithCheckpointer(cp), WithMetrics(m))

	if err := s.AddToCart(context.Background(), 1); err != nil {
		t.Fatalf("AddToCart should succeed despite checkpoint failure, got %v", err)
	}
	if len(s.Cart()) != 1 {
		t.Error("cart mutation should be applied despite checkpoint failure")
	}
	if len(m.failures) != 1 || m.failures[0] != "cart" {
		t.Errorf("checkpoint failures = %v, want [cart]", m.failures)
	}
}

// --- アイデンティティコマンド ---

func TestLogin_CreatesStorefrontSession(t *testing.T) {
	s := newTestStore()

	sess, err := s.Login(context.Background(), "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if sess.ID == "" {
		t.Error("session ID should be generated")
	}
	if sess.UserID != "" {
		t.Errorf("storefront session should not reference a social user, got %q", sess.UserID)
	}
	if sess.Email != "alice@example.com" || sess.Name != "Alice" {
		t.Errorf("session = %+v, want Alice/alice@example.com", sess)
	}
}

func TestLogin_EmptyName(t *testing.T) {
	s := newTestStore()

	_, err := s.Login(context.Background(), "a@example.com", "   ")
	assertAPIErrorCode(t, err, model.ErrCodeEmptyText)
}

func TestLoginAs_ResolvesSeededUser(t *testing.T) {
	s := newTestStore()

	sess, err := s.LoginAs(context.Background(), "tech_guru")
	if err != nil {
		t.Fatalf("LoginAs returned error: %v", err)
	}
	if sess.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", sess.UserID)
	}
	if sess.Name != "Alex Rivera" {
		t.Errorf("Name = %q, want Alex Rivera", sess.Name)
	}
}

func TestLoginAs_UnknownUsername(t *testing.T) {
	s := newTestStore()

	_, err := s.LoginAs(context.Background(), "nobody")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestSignup_CreatesUserAndSession(t *testing.T) {
	s := newTestStore()

	sess, err := s.Signup(context.Background(), "New User", "new_user")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	u := s.FindUserByUsername("new_user")
	if u == nil {
		t.Fatal("signed-up user should be findable by username")
	}
	if sess.UserID != u.ID {
		t.Errorf("session UserID = %q, want %q", sess.UserID, u.ID)
	}
	if len(u.Followers) != 0 || len(u.Following) != 0 {
		t.Error("new user should start with empty follower/following sets")
	}
	if u.Bio == "" {
		t.Error("new user should get a default bio")
	}
}

func TestSignup_UsernameTaken(t *testing.T) {
	s := newTestStore()

	_, err := s.Signup(context.Background(), "Imposter", "tech_guru")
	assertAPIErrorCode(t, err, model.ErrCodeUsernameTaken)
}

func TestLogout_PreservesCart(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Login(ctx, "alice@example.com", "Alice")
	s.AddToCart(ctx, 1)

	s.Logout(ctx)

	if s.Session() != nil {
		t.Error("session should be nil after logout")
	}
	if len(s.Cart()) != 1 {
		t.Error("logout must not clear the cart")
	}
}

// --- ソーシャルグラフコマンド ---

func TestToggleFollow_MaintainsSymmetry(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	// u1は初期状態でu3をフォローしていない
	following, err := s.ToggleFollow(ctx, "u1", "u3")
	if err != nil {
		t.Fatalf("ToggleFollow returned error: %v", err)
	}
	if !following {
		t.Error("first toggle should result in following=true")
	}

	u1 := s.FindUserByID("u1")
	u3 := s.FindUserByID("u3")
	if _, ok := u1.Following["u3"]; !ok {
		t.Error("u3 should be in u1.Following")
	}
	if _, ok := u3.Followers["u1"]; !ok {
		t.Error("u1 should be in u3.Followers")
	}

	// 2回目のトグルで両側のエッジが消える
	following, err = s.ToggleFollow(ctx, "u1", "u3")
	if err != nil {
		t.Fatalf("second ToggleFollow returned error: %v", err)
	}
	if following {
		t.Error("second toggle should result in following=false")
	}

	u1 = s.FindUserByID("u1")
	u3 = s.FindUserByID("u3")
	if _, ok := u1.Following["u3"]; ok {
		t.Error("u3 should be removed from u1.Following")
	}
	if _, ok := u3.Followers["u1"]; ok {
		t.Error("u1 should be removed from u3.Followers")
	}
}

func TestToggleFollow_SelfFollow(t *testing.T) {
	s := newTestStore()

	_, err := s.ToggleFollow(context.Background(), "u1", "u1")
	assertAPIErrorCode(t, err, model.ErrCodeSelfFollow)
}

func TestToggleFollow_UnknownTarget(t *testing.T) {
	s := newTestStore()

	_, err := s.ToggleFollow(context.Background(), "u1", "ghost")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestToggleLike_IsInvolution(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	liked, err := s.ToggleLike(ctx, "p3", "u1")
	if err != nil {
		t.Fatalf("ToggleLike returned error: %v", err)
	}
	if !liked {
		t.Error("first toggle should like the post")
	}
	if !s.FindPost("p3").LikedBy("u1") {
		t.Error("p3 should be liked by u1")
	}

	liked, err = s.ToggleLike(ctx, "p3", "u1")
	if err != nil {
		t.Fatalf("second ToggleLike returned error: %v", err)
	}
	if liked {
		t.Error("second toggle should unlike the post")
	}
	if s.FindPost("p3").LikedBy("u1") {
		t.Error("like should be removed after second toggle")
	}
}

func TestToggleLike_UnknownPost(t *testing.T) {
	s := newTestStore()

	_, err := s.ToggleLike(context.Background(), "ghost", "u1")
	assertAPIErrorCode(t, err, model.ErrCodePostNotFound)
}

func TestAddComment_AppendsInOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	c1, err := s.AddComment(ctx, "p2", "u1", "first")
	if err != nil {
		t.Fatalf("AddComment returned error: %v", err)
	}
	c2, err := s.AddComment(ctx, "p2", "u1", "second")
	if err != nil {
		t.Fatalf("AddComment returned error: %v", err)
	}
	if c1.ID == c2.ID {
		t.Error("comments should get distinct IDs")
	}

	p := s.FindPost("p2")
	if len(p.Comments) != 2 {
		t.Fatalf("comment count = %d, want 2", len(p.Comments))
	}
	if p.Comments[0].Text != "first" || p.Comments[1].Text != "second" {
		t.Error("comments should preserve append order")
	}
}

func TestAddComment_EmptyText(t *testing.T) {
	s := newTestStore()

	_, err := s.AddComment(context.Background(), "p1", "u1", "  \t ")
	assertAPIErrorCode(t, err, model.ErrCodeEmptyText)

	if got := len(s.FindPost("p1").Comments); got != 1 {
		t.Errorf("seeded comment count = %d, want 1 (post must be unchanged)", got)
	}
}

func TestRemoveComment_RemovesAddedComment(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	c, err := s.AddComment(ctx, "p2", "u1", "oops")
	if err != nil {
		t.Fatalf("AddComment returned error: %v", err)
	}

	if err := s.RemoveComment(ctx, "p2", c.ID); err != nil {
		t.Fatalf("RemoveComment returned error: %v", err)
	}
	if got := len(s.FindPost("p2").Comments); got != 0 {
		t.Errorf("comment count = %d, want 0", got)
	}
}

func TestRemoveComment_Missing(t *testing.T) {
	s := newTestStore()

	err := s.RemoveComment(context.Background(), "p1", "ghost")
	assertAPIErrorCode(t, err, model.ErrCodeCommentNotFound)
}

func TestCreatePost_PrependsToTimeline(t *testing.T) {
	s := newTestStore()

	p, err := s.CreatePost(context.Background(), "u1", "hello world", "")
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	posts := s.Posts()
	if posts[0].ID != p.ID {
		t.Errorf("new post should be first in the timeline, got %q", posts[0].ID)
	}
	if posts[0].Seq <= posts[1].Seq {
		t.Errorf("new post Seq = %d, should exceed previous max %d", posts[0].Seq, posts[1].Seq)
	}
}

func TestCreatePost_EmptyContent(t *testing.T) {
	s := newTestStore()

	_, err := s.CreatePost(context.Background(), "u1", "", "")
	assertAPIErrorCode(t, err, model.ErrCodeEmptyText)
}

func TestCreatePost_InvalidImageURL(t *testing.T) {
	s := newTestStore(WithImageURLValidator(&mockURLValidator{
		validateFn: func(rawURL string) error {
			return errors.New("scheme must be https")
		},
	}))

	_, err := s.CreatePost(context.Background(), "u1", "content", "http://evil.example")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidImageURL)
}

func TestCreatePost_SanitizesContent(t *testing.T) {
	s := newTestStore(WithSanitizer(&mockSanitizer{
		sanitizeFn: func(raw string) string {
			return strings.ReplaceAll(raw, "<script>", "")
		},
	}))

	p, err := s.CreatePost(context.Background(), "u1", "hi<script>", "")
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}
	if p.Content != "hi" {
		t.Errorf("content = %q, want %q", p.Content, "hi")
	}
}

func TestDeletePost_RemovesFromTimeline(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	p, err := s.CreatePost(ctx, "u1", "temporary", "")
	if err != nil {
		t.Fatalf("CreatePost returned error: %v", err)
	}

	if err := s.DeletePost(ctx, p.ID); err != nil {
		t.Fatalf("DeletePost returned error: %v", err)
	}
	if s.FindPost(p.ID) != nil {
		t.Error("deleted post should not be findable")
	}
	for _, existing := range s.Posts() {
		if existing.ID == p.ID {
			t.Error("deleted post should not appear in the timeline")
		}
	}
}

func TestUpdateBio_ReturnsPreviousBio(t *testing.T) {
	s := newTestStore()

	prev, err := s.UpdateBio(context.Background(), "u3", "new bio")
	if err != nil {
		t.Fatalf("UpdateBio returned error: %v", err)
	}
	if prev != "UI/UX Designer. Minimalist." {
		t.Errorf("previous bio = %q, want seeded bio", prev)
	}
	if got := s.FindUserByID("u3").Bio; got != "new bio" {
		t.Errorf("bio = %q, want %q", got, "new bio")
	}
}

// --- クエリとスナップショット ---

func TestSnapshots_AreIndependentCopies(t *testing.T) {
	s := newTestStore()

	p := s.FindPost("p1")
	p.Likes["hacker"] = struct{}{}
	p.Comments = append(p.Comments, model.Comment{ID: "fake"})

	fresh := s.FindPost("p1")
	if fresh.LikedBy("hacker") {
		t.Error("mutating a snapshot must not affect store state")
	}
	if len(fresh.Comments) != 1 {
		t.Errorf("comment count = %d, want 1", len(fresh.Comments))
	}
}

func TestAdoptPersisted_RestoresState(t *testing.T) {
	s := newTestStore()

	cart := []model.CartLine{{ProductID: 3, Quantity: 2}}
	sess := &model.Session{ID: "restored", Name: "Alice", CreatedAt: time.Now()}

	s.AdoptPersisted(cart, sess)

	if got := s.Cart(); len(got) != 1 || got[0].ProductID != 3 {
		t.Errorf("cart = %+v, want restored line", got)
	}
	if got := s.Session(); got == nil || got.ID != "restored" {
		t.Errorf("session = %+v, want restored session", got)
	}
}

func TestAdoptPersisted_NilArgumentsKeepDefaults(t *testing.T) {
	s := newTestStore()

	s.AdoptPersisted(nil, nil)

	if len(s.Cart()) != 0 {
		t.Error("cart should stay empty")
	}
	if s.Session() != nil {
		t.Error("session should stay nil")
	}
}
