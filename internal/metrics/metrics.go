// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 投票反映の結果区分
const (
	VoteOutcomeModified  = "modified"
	VoteOutcomeUnchanged = "unchanged"
	VoteOutcomeUpserted  = "upserted"
	VoteOutcomeMissed    = "missed"
	VoteOutcomeAdded     = "added"
	VoteOutcomeRemoved   = "removed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordVoteApplied(collection, outcome string)
	RecordTokenIssued()
	RecordAuthRejected()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	votesApplied *prometheus.CounterVec
	tokensIssued prometheus.Counter
	authRejected prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webtec_http_requests_total",
			Help: "メソッド・ルート・ステータスコード別のレスポンス数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webtec_http_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		votesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webtec_votes_applied_total",
			Help: "コレクション・結果別の投票反映数",
		}, []string{"collection", "outcome"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webtec_tokens_issued_total",
			Help: "発行したトークンの合計数",
		}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webtec_auth_rejected_total",
			Help: "認証で拒否したリクエストの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.votesApplied,
		c.tokensIssued,
		c.authRejected,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはURLパスではなくルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordVoteApplied は投票の反映を記録する。
func (c *Collector) RecordVoteApplied(collection, outcome string) {
	c.votesApplied.WithLabelValues(collection, outcome).Inc()
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokensIssued.Inc()
}

// RecordAuthRejected は認証拒否を記録する。
func (c *Collector) RecordAuthRejected() {
	c.authRejected.Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordVoteApplied(string, string) {}
func (Nop) RecordTokenIssued() {}
func (Nop) RecordAuthRejected() {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
