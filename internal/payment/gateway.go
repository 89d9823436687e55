// Package payment は決済事業者への支払いインテント作成を提供する。
package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Gateway は決済事業者の抽象。
// amountCentsはセント単位の金額。戻り値はクライアントが決済確定に使うシークレット。
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64) (string, error)
}

// intentCreator はStripeの支払いインテントAPIのうち使用するメソッド。
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway はStripeを使用したGateway実装。
type StripeGateway struct {
	intents intentCreator
}

// NewStripeGateway はシークレットキーからStripeGatewayを生成する。
func NewStripeGateway(secretKey string) *StripeGateway {
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents}
}

// CreatePaymentIntent はUSD建て・カード払いの支払いインテントを作成する。
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amountCents int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountCents),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx

	intent, err := g.intents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}

// compile-time interface check
var _ Gateway = (*StripeGateway)(nil)
