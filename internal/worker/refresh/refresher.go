// Package refresh はアカウント情報のバックグラウンド更新を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Updater はアカウント情報の更新インターフェース。
// テスト時にモックに差し替え可能。
type Updater interface {
	Update(ctx context.Context) error
}

// Recorder は更新結果の記録先。
type Recorder interface {
	RecordRefresh(success bool, at time.Time)
}

// Config は更新ジョブの設定パラメータ。
type Config struct {
	// Interval は更新間隔（デフォルト: 10分）。
	Interval time.Duration
	// FailureWarnThreshold はこの回数連続で失敗したら警告ログを出す（デフォルト: 3）。
	FailureWarnThreshold int
}

// DefaultConfig はデフォルトの更新ジョブ設定を返す。
func DefaultConfig() Config {
	return Config{
		Interval:             10 * time.Minute,
		FailureWarnThreshold: 3,
	}
}

// Refresher はアカウント情報を定期的に取り直すジョブ。
// 失敗は次の周期まで待つだけで、再試行はしない。
type Refresher struct {
	updater  Updater
	recorder Recorder
	logger   *slog.Logger
	config   Config

	consecutiveErrors int
}

// New はRefresherの新しいインスタンスを生成する。
// recorderがnilの場合は記録しない。
func New(updater Updater, recorder Recorder, logger *slog.Logger, config Config) *Refresher {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.FailureWarnThreshold <= 0 {
		config.FailureWarnThreshold = DefaultConfig().FailureWarnThreshold
	}
	return &Refresher{
		updater:  updater,
		recorder: recorder,
		logger:   logger,
		config:   config,
	}
}

// Start は更新ジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("アカウント更新ジョブを開始しました",
		slog.Duration("interval", r.config.Interval),
	)

	// 起動直後に1回実行
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("アカウント更新ジョブを停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce はアカウント情報を1回更新し、成功したかどうかを返す。
func (r *Refresher) RunOnce(ctx context.Context) bool {
	start := time.Now()

	err := r.updater.Update(ctx)
	if r.recorder != nil {
		r.recorder.RecordRefresh(err == nil, time.Now())
	}

	if err != nil {
		r.consecutiveErrors++
		r.logger.Error("アカウント更新サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", r.consecutiveErrors),
		)
		if r.consecutiveErrors >= r.config.FailureWarnThreshold {
			r.logger.Warn("アカウント更新が連続で失敗しています",
				slog.Int("consecutive_errors", r.consecutiveErrors),
			)
		}
		return false
	}

	r.consecutiveErrors = 0
	duration := time.Since(start)
	r.logger.Info("アカウント更新サイクルが完了しました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return true
}

// ConsecutiveErrors は連続失敗回数を返す。
func (r *Refresher) ConsecutiveErrors() int {
	return r.consecutiveErrors
}
