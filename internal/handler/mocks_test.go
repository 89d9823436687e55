package handler

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/webtec/internal/model"
)

// --- モック定義 ---

type mockTokenIssuer struct {
	issueFn func(payload map[string]any) (string, error)
}

func (m *mockTokenIssuer) Issue(payload map[string]any) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(payload)
	}
	return "signed-token", nil
}

func (m *mockTokenIssuer) TTL() time.Duration { return time.Hour }

type mockTokenVerifier struct {
	tokens map[string]map[string]any
}

func (m *mockTokenVerifier) Verify(token string) (map[string]any, error) {
	identity, ok := m.tokens[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return identity, nil
}

type mockCounter struct {
	tokensIssued int
}

func (m *mockCounter) RecordTokenIssued() { m.tokensIssued++ }

type mockListingService struct {
	listItemsFn     func(ctx context.Context, c model.Collection, page, size int, search string) (model.ItemCursor, error)
	countItemsFn    func(ctx context.Context, c model.Collection) (int64, error)
	countFilteredFn func(ctx context.Context, c model.Collection, search string) (int64, error)
	getItemFn       func(ctx context.Context, c model.Collection, id string) (*model.Votable, error)
	createItemFn    func(ctx context.Context, c model.Collection, fields map[string]any) (*model.InsertResult, error)
}

func (m *mockListingService) ListItems(ctx context.Context, c model.Collection, page, size int, search string) (model.ItemCursor, error) {
	return m.listItemsFn(ctx, c, page, size, search)
}
func (m *mockListingService) CountItems(ctx context.Context, c model.Collection) (int64, error) {
	return m.countItemsFn(ctx, c)
}
func (m *mockListingService) CountFiltered(ctx context.Context, c model.Collection, search string) (int64, error) {
	return m.countFilteredFn(ctx, c, search)
}
func (m *mockListingService) GetItem(ctx context.Context, c model.Collection, id string) (*model.Votable, error) {
	return m.getItemFn(ctx, c, id)
}
func (m *mockListingService) CreateItem(ctx context.Context, c model.Collection, fields map[string]any) (*model.InsertResult, error) {
	return m.createItemFn(ctx, c, fields)
}

type mockVoteService struct {
	applyVoteFn  func(ctx context.Context, c model.Collection, id string, votes int, votedBy []string) (*model.UpdateResult, error)
	toggleVoteFn func(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error)
}

func (m *mockVoteService) ApplyVote(ctx context.Context, c model.Collection, id string, votes int, votedBy []string) (*model.UpdateResult, error) {
	return m.applyVoteFn(ctx, c, id, votes, votedBy)
}
func (m *mockVoteService) ToggleVote(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error) {
	return m.toggleVoteFn(ctx, c, id, voter)
}

type mockUserService struct {
	createUserFn   func(ctx context.Context, email string, fields map[string]any) (*model.CreateUserResult, error)
	updateStatusFn func(ctx context.Context, email, status string) (*model.UpdateResult, error)
	listUsersFn    func(ctx context.Context) ([]model.User, error)
}

func (m *mockUserService) CreateUser(ctx context.Context, email string, fields map[string]any) (*model.CreateUserResult, error) {
	return m.createUserFn(ctx, email, fields)
}
func (m *mockUserService) UpdateSubscriptionStatus(ctx context.Context, email, status string) (*model.UpdateResult, error) {
	return m.updateStatusFn(ctx, email, status)
}
func (m *mockUserService) ListUsers(ctx context.Context) ([]model.User, error) {
	return m.listUsersFn(ctx)
}

type mockFeedbackService struct {
	addReviewFn   func(ctx context.Context, fields map[string]any) (*model.InsertResult, error)
	addReportFn   func(ctx context.Context, fields map[string]any) (*model.InsertResult, error)
	listReviewsFn func(ctx context.Context, productID string) ([]model.Document, error)
}

func (m *mockFeedbackService) AddReview(ctx context.Context, fields map[string]any) (*model.InsertResult, error) {
	return m.addReviewFn(ctx, fields)
}
func (m *mockFeedbackService) AddReport(ctx context.Context, fields map[string]any) (*model.InsertResult, error) {
	return m.addReportFn(ctx, fields)
}
func (m *mockFeedbackService) ListReviews(ctx context.Context, productID string) ([]model.Document, error) {
	return m.listReviewsFn(ctx, productID)
}

type mockPaymentService struct {
	createIntentFn func(ctx context.Context, price float64) (string, error)
}

func (m *mockPaymentService) CreateIntent(ctx context.Context, price float64) (string, error) {
	return m.createIntentFn(ctx, price)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// sliceCursor はスライスを走査するItemCursor。
type sliceCursor struct {
	items  []model.Votable
	pos    int
	err    error
	closed bool
}

func (c *sliceCursor) Next() bool {
	if c.pos >= len(c.items) {
		return false
	}
	c.pos++
	return true
}
func (c *sliceCursor) Item() model.Votable { return c.items[c.pos-1] }
func (c *sliceCursor) Err() error          { return c.err }
func (c *sliceCursor) Close() error {
	c.closed = true
	return nil
}
