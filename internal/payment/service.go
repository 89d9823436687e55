package payment

import (
	"context"
	"log/slog"
	"math"

	"github.com/hitoshi/webtec/internal/model"
)

// Service は支払いインテント作成のサービス。
type Service struct {
	gateway Gateway
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

// CreateIntent はドル建ての金額から支払いインテントを作成し、クライアントシークレットを返す。
// 金額はセント単位に丸めて決済事業者に渡す。リトライはしない。
func (s *Service) CreateIntent(ctx context.Context, price float64) (string, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return "", model.NewInvalidPriceError()
	}
	amount := int64(math.Round(price * 100))
	if amount <= 0 {
		return "", model.NewInvalidPriceError()
	}

	secret, err := s.gateway.CreatePaymentIntent(ctx, amount)
	if err != nil {
		slog.Error("支払いインテントの作成に失敗しました",
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
		return "", model.NewPaymentFailedError()
	}
	return secret, nil
}
