// Package vote はアイテムの投票状態を更新するドメインロジックを提供する。
package vote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/webtec/internal/metrics"
	"github.com/hitoshi/webtec/internal/model"
	"github.com/hitoshi/webtec/internal/repository"
)

// Recorder は投票結果のメトリクス記録先。
type Recorder interface {
	RecordVoteApplied(collection, outcome string)
}

// Service は投票状態の更新サービス。
//
// ApplyVote はクライアントが計算した投票数と投票者リストを丸ごと上書きする。
// 同時に異なる値が送信された場合は後勝ちになる。
// ToggleVote はサーバー側で投票者集合の追加・除去を1ステートメントで行う。
type Service struct {
	repo        repository.VotableRepository
	recorder    Recorder
	allowUpsert bool
}

// NewService はServiceの新しいインスタンスを生成する。
// allowUpsertがtrueの場合、存在しないIDへの投票は投票フィールドのみのアイテムを作成する。
func NewService(repo repository.VotableRepository, recorder Recorder, allowUpsert bool) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:        repo,
		recorder:    recorder,
		allowUpsert: allowUpsert,
	}
}

// ApplyVote は指定アイテムのvotesとvotedByを送信された値で置き換える。
// 値は検証せずそのまま保存する。同一値の再送信は何も変更しない。
func (s *Service) ApplyVote(ctx context.Context, c model.Collection, id string, votes int, votedBy []string) (*model.UpdateResult, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return nil, model.NewInvalidCollectionError(string(c))
	}
	if votedBy == nil {
		votedBy = []string{}
	}

	result, err := s.repo.SetVotes(ctx, c, id, votes, votedBy, s.allowUpsert)
	if err != nil {
		return nil, fmt.Errorf("投票の更新に失敗しました: %w", err)
	}

	outcome := applyOutcome(result)
	s.recorder.RecordVoteApplied(string(c), outcome)
	if outcome == metrics.VoteOutcomeUpserted {
		slog.Info("投票により新しいアイテムが作成されました",
			slog.String("collection", string(c)),
			slog.String("item_id", id),
		)
	}

	return result, nil
}

// ToggleVote は投票者の投票を切り替える。
// 未投票なら追加し、投票済みなら取り消す。votesは投票者数から導出される。
// アイテムが存在しない場合は作成せずItemNotFoundを返す。
func (s *Service) ToggleVote(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return nil, model.NewInvalidCollectionError(string(c))
	}
	if strings.TrimSpace(voter) == "" {
		return nil, model.NewMissingVoterError()
	}

	state, err := s.repo.ToggleVoter(ctx, c, id, voter)
	if err != nil {
		return nil, fmt.Errorf("投票の切り替えに失敗しました: %w", err)
	}
	if state == nil {
		s.recorder.RecordVoteApplied(string(c), metrics.VoteOutcomeMissed)
		return nil, model.NewItemNotFoundError(id)
	}

	if state.Voted {
		s.recorder.RecordVoteApplied(string(c), metrics.VoteOutcomeAdded)
	} else {
		s.recorder.RecordVoteApplied(string(c), metrics.VoteOutcomeRemoved)
	}
	return state, nil
}

func applyOutcome(result *model.UpdateResult) string {
	switch {
	case result.UpsertedCount > 0:
		return metrics.VoteOutcomeUpserted
	case result.MatchedCount == 0:
		return metrics.VoteOutcomeMissed
	case result.ModifiedCount == 0:
		return metrics.VoteOutcomeUnchanged
	default:
		return metrics.VoteOutcomeModified
	}
}
