// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストアやサービス層から利用する。
type MetricsCollector interface {
	RecordCommand(name string)
	RecordCommandFailure(name string, category string)
	RecordOptimisticRevert(operation string)
	RecordCheckpointFailure(key string)
	RecordCompletionLatency(duration time.Duration)
	RecordCompletionFallback(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	commands           *prometheus.CounterVec
	commandFailures    *prometheus.CounterVec
	optimisticReverts  *prometheus.CounterVec
	checkpointFailures *prometheus.CounterVec
	completionLatency  prometheus.Histogram
	completionFallback *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_commands_total",
			Help: "実行されたストアコマンドの合計数",
		}, []string{"command"}),
		commandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_command_failures_total",
			Help: "失敗したストアコマンドのカテゴリ別合計数",
		}, []string{"command", "category"}),
		optimisticReverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_optimistic_reverts_total",
			Help: "バックエンド失敗により巻き戻された楽観的更新の合計数",
		}, []string{"operation"}),
		checkpointFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_checkpoint_failures_total",
			Help: "KVストアへの書き込みに失敗したチェックポイントのキー別合計数",
		}, []string{"key"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agora_completion_latency_seconds",
			Help:    "テキスト補完リクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		completionFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_completion_fallbacks_total",
			Help: "フォールバック文字列に退避したテキスト補完の合計数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.commands,
		c.commandFailures,
		c.optimisticReverts,
		c.checkpointFailures,
		c.completionLatency,
		c.completionFallback,
	)

	return c
}

// RecordCommand はコマンドの実行を記録する。
func (c *Collector) RecordCommand(name string) {
	c.commands.WithLabelValues(name).Inc()
}

// RecordCommandFailure はコマンドの失敗をカテゴリ付きで記録する。
func (c *Collector) RecordCommandFailure(name string, category string) {
	c.commandFailures.WithLabelValues(name, category).Inc()
}

// RecordOptimisticRevert は楽観的更新の巻き戻しを記録する。
func (c *Collector) RecordOptimisticRevert(operation string) {
	c.optimisticReverts.WithLabelValues(operation).Inc()
}

// RecordCheckpointFailure はチェックポイント書き込みの失敗を記録する。
func (c *Collector) RecordCheckpointFailure(key string) {
	c.checkpointFailures.WithLabelValues(key).Inc()
}

// RecordCompletionLatency はテキスト補完のレイテンシを記録する。
func (c *Collector) RecordCompletionLatency(duration time.Duration) {
	c.completionLatency.Observe(duration.Seconds())
}

// RecordCompletionFallback はフォールバックへの退避を記録する。
func (c *Collector) RecordCompletionFallback(operation string) {
	c.completionFallback.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
