package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/webtec/internal/model"
)

func TestPostgresVotableRepo_ImplementsInterface(t *testing.T) {
	var _ VotableRepository = (*PostgresVotableRepo)(nil)
}

func TestTableFor_RejectsUnknownCollection(t *testing.T) {
	_, err := tableFor(model.Collection("users; DROP TABLE products"))
	if err == nil {
		t.Fatal("expected error for unknown collection")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCollection {
		t.Errorf("error = %v, want INVALID_COLLECTION", err)
	}
}

func TestTableFor_KnownCollections(t *testing.T) {
	want := map[model.Collection]string{
		model.CollectionProducts: "products",
		model.CollectionFeatured: "featured",
		model.CollectionTrending: "trending",
	}
	for c, table := range want {
		got, err := tableFor(c)
		if err != nil {
			t.Fatalf("tableFor(%q) error: %v", c, err)
		}
		if got != table {
			t.Errorf("tableFor(%q) = %q, want %q", c, got, table)
		}
	}
}

// ============================================================
// DB統合テスト
// ============================================================

func seedItems(t *testing.T, repo *PostgresVotableRepo, c model.Collection, n int, tagFor func(i int) []string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		item := &model.Votable{
			ID:        fmt.Sprintf("item-%02d", i),
			Fields:    map[string]any{"name": fmt.Sprintf("Item %d", i)},
			Tags:      tagFor(i),
			VotedBy:   []string{},
			Timestamp: &ts,
		}
		if err := repo.Create(context.Background(), c, item); err != nil {
			t.Fatalf("seed Create failed: %v", err)
		}
	}
}

func drain(t *testing.T, cur model.ItemCursor) []model.Votable {
	t.Helper()
	defer cur.Close()
	var items []model.Votable
	for cur.Next() {
		items = append(items, cur.Item())
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	return items
}

func TestPostgresVotableRepo_List_OrderAndPagination(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionProducts, 7, func(int) []string { return []string{"ai"} })

	seen := map[string]bool{}
	var all []model.Votable
	for page := 0; page < 3; page++ {
		cur, err := repo.List(ctx, model.CollectionProducts, model.ListQuery{Offset: page * 3, Limit: 3})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		items := drain(t, cur)
		for _, it := range items {
			if seen[it.ID] {
				t.Errorf("item %s appeared on more than one page", it.ID)
			}
			seen[it.ID] = true
		}
		all = append(all, items...)
	}

	if len(all) != 7 {
		t.Fatalf("total items = %d, want 7", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp.Before(*all[i].Timestamp) {
			t.Errorf("items not in descending timestamp order at %d", i)
		}
	}
	if all[0].ID != "item-06" {
		t.Errorf("first item = %s, want item-06", all[0].ID)
	}
}

func TestPostgresVotableRepo_List_ZeroLimitReturnsAll(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)

	seedItems(t, repo, model.CollectionFeatured, 5, func(int) []string { return nil })

	cur, err := repo.List(context.Background(), model.CollectionFeatured, model.ListQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := len(drain(t, cur)); got != 5 {
		t.Errorf("items = %d, want 5", got)
	}
}

func TestPostgresVotableRepo_List_TagExactMatch(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionProducts, 4, func(i int) []string {
		if i%2 == 0 {
			return []string{"ai", "tools"}
		}
		return []string{"aim"}
	})

	cur, err := repo.List(ctx, model.CollectionProducts, model.ListQuery{Tag: "ai"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	items := drain(t, cur)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, it := range items {
		if !reflect.DeepEqual(it.Tags, []string{"ai", "tools"}) {
			t.Errorf("unexpected tags %v", it.Tags)
		}
	}

	filtered, err := repo.CountByTag(ctx, model.CollectionProducts, "ai")
	if err != nil {
		t.Fatalf("CountByTag failed: %v", err)
	}
	if filtered != 2 {
		t.Errorf("CountByTag = %d, want 2", filtered)
	}

	// 概算件数はフィルタを無視する
	if _, err := db.Exec(`ANALYZE products`); err != nil {
		t.Fatalf("ANALYZE failed: %v", err)
	}
	total, err := repo.EstimatedCount(ctx, model.CollectionProducts)
	if err != nil {
		t.Fatalf("EstimatedCount failed: %v", err)
	}
	if total != 4 {
		t.Errorf("EstimatedCount = %d, want 4", total)
	}
}

// TestPostgresVotableRepo_Counts はタグ付き・タグなしの行で概算件数と絞り込み件数を検証する。
// 概算件数は統計が無い間はcount(*)に、ANALYZE後はpg_classの推定値になる。
func TestPostgresVotableRepo_Counts(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionProducts, 12, func(i int) []string {
		switch i % 4 {
		case 0:
			return []string{"ai"}
		case 1:
			return []string{"ai-tools", "R&D"}
		case 2:
			return nil
		default:
			return []string{}
		}
	})
	// 投票upsertのみで作られた行（タグなし）
	if _, err := repo.SetVotes(ctx, model.CollectionProducts, "phantom", 1, []string{"a@x.com"}, true); err != nil {
		t.Fatalf("SetVotes failed: %v", err)
	}
	seedItems(t, repo, model.CollectionFeatured, 2, func(int) []string { return []string{"ai"} })

	const wantTotal = 13

	// TRUNCATE直後は統計が無いのでcount(*)になる
	total, err := repo.EstimatedCount(ctx, model.CollectionProducts)
	if err != nil {
		t.Fatalf("EstimatedCount before ANALYZE failed: %v", err)
	}
	if total != wantTotal {
		t.Errorf("EstimatedCount before ANALYZE = %d, want %d", total, wantTotal)
	}

	if _, err := db.Exec(`ANALYZE products`); err != nil {
		t.Fatalf("ANALYZE failed: %v", err)
	}
	total, err = repo.EstimatedCount(ctx, model.CollectionProducts)
	if err != nil {
		t.Fatalf("EstimatedCount after ANALYZE failed: %v", err)
	}
	if total != wantTotal {
		t.Errorf("EstimatedCount after ANALYZE = %d, want %d", total, wantTotal)
	}

	tests := []struct {
		tag  string
		want int64
	}{
		{"", wantTotal},
		{"ai", 3},
		{"ai-tools", 3},
		{"R&D", 3},
		{"AI", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		got, err := repo.CountByTag(ctx, model.CollectionProducts, tt.tag)
		if err != nil {
			t.Fatalf("CountByTag(%q) failed: %v", tt.tag, err)
		}
		if got != tt.want {
			t.Errorf("CountByTag(%q) = %d, want %d", tt.tag, got, tt.want)
		}
	}

	// コレクションごとに独立
	if got, err := repo.CountByTag(ctx, model.CollectionFeatured, "ai"); err != nil || got != 2 {
		t.Errorf("featured CountByTag(ai) = %d, %v, want 2", got, err)
	}
}

func TestPostgresVotableRepo_FindByID(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionTrending, 1, func(int) []string { return []string{"x"} })

	item, err := repo.FindByID(ctx, model.CollectionTrending, "item-00")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if item == nil || item.Fields["name"] != "Item 0" {
		t.Errorf("unexpected item: %+v", item)
	}

	missing, err := repo.FindByID(ctx, model.CollectionTrending, "nope")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing item, got %+v", missing)
	}

	// コレクション間は独立している
	other, err := repo.FindByID(ctx, model.CollectionProducts, "item-00")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if other != nil {
		t.Error("item leaked across collections")
	}
}

func TestPostgresVotableRepo_Create_Duplicate(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)

	seedItems(t, repo, model.CollectionProducts, 1, func(int) []string { return nil })

	err := repo.Create(context.Background(), model.CollectionProducts, &model.Votable{ID: "item-00"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("error = %v, want ErrDuplicateKey", err)
	}
}

func TestPostgresVotableRepo_SetVotes_Idempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionProducts, 1, func(int) []string { return []string{"ai"} })

	first, err := repo.SetVotes(ctx, model.CollectionProducts, "item-00", 2, []string{"a@x.com", "b@x.com"}, true)
	if err != nil {
		t.Fatalf("SetVotes failed: %v", err)
	}
	if first.MatchedCount != 1 || first.ModifiedCount != 1 || first.UpsertedCount != 0 {
		t.Errorf("first result = %+v", first)
	}

	second, err := repo.SetVotes(ctx, model.CollectionProducts, "item-00", 2, []string{"a@x.com", "b@x.com"}, true)
	if err != nil {
		t.Fatalf("SetVotes failed: %v", err)
	}
	if second.MatchedCount != 1 || second.ModifiedCount != 0 {
		t.Errorf("second result = %+v, want matched=1 modified=0", second)
	}

	item, err := repo.FindByID(ctx, model.CollectionProducts, "item-00")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if item.Votes != 2 || len(item.VotedBy) != 2 {
		t.Errorf("votes = %d votedBy = %v", item.Votes, item.VotedBy)
	}
	if item.Fields["name"] != "Item 0" || !reflect.DeepEqual(item.Tags, []string{"ai"}) {
		t.Error("non-vote fields must not change")
	}
}

func TestPostgresVotableRepo_SetVotes_UpsertCreatesPhantom(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	result, err := repo.SetVotes(ctx, model.CollectionFeatured, "ghost", 1, []string{"a@x.com"}, true)
	if err != nil {
		t.Fatalf("SetVotes failed: %v", err)
	}
	if result.UpsertedCount != 1 || result.UpsertedID == nil || *result.UpsertedID != "ghost" {
		t.Errorf("result = %+v", result)
	}

	item, err := repo.FindByID(ctx, model.CollectionFeatured, "ghost")
	if err != nil || item == nil {
		t.Fatalf("FindByID: item=%v err=%v", item, err)
	}
	if item.Tags != nil || item.Timestamp != nil || len(item.Fields) != 0 {
		t.Errorf("phantom item should only carry vote fields: %+v", item)
	}
}

func TestPostgresVotableRepo_SetVotes_NoUpsert(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	result, err := repo.SetVotes(ctx, model.CollectionTrending, "ghost", 1, []string{"a@x.com"}, false)
	if err != nil {
		t.Fatalf("SetVotes failed: %v", err)
	}
	if result.MatchedCount != 0 || result.UpsertedCount != 0 {
		t.Errorf("result = %+v, want nothing matched", result)
	}
	item, err := repo.FindByID(ctx, model.CollectionTrending, "ghost")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if item != nil {
		t.Error("no document should be created without upsert")
	}
}

func TestPostgresVotableRepo_ToggleVoter(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresVotableRepo(db)
	ctx := context.Background()

	seedItems(t, repo, model.CollectionProducts, 1, func(int) []string { return nil })

	state, err := repo.ToggleVoter(ctx, model.CollectionProducts, "item-00", "a@x.com")
	if err != nil {
		t.Fatalf("ToggleVoter failed: %v", err)
	}
	if !state.Voted || state.Votes != 1 || !reflect.DeepEqual(state.VotedBy, []string{"a@x.com"}) {
		t.Errorf("after first toggle: %+v", state)
	}

	state, err = repo.ToggleVoter(ctx, model.CollectionProducts, "item-00", "a@x.com")
	if err != nil {
		t.Fatalf("ToggleVoter failed: %v", err)
	}
	if state.Voted || state.Votes != 0 || len(state.VotedBy) != 0 {
		t.Errorf("after second toggle: %+v", state)
	}

	missing, err := repo.ToggleVoter(ctx, model.CollectionProducts, "nope", "a@x.com")
	if err != nil {
		t.Fatalf("ToggleVoter failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil state for missing item, got %+v", missing)
	}
}
