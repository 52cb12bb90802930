package dataset

// FeatureColumns is the model input contract. The 24 names and their order
// are shared with the collector that produces the CSV and with the inference
// engine that consumes the exported models, so the order here must never
// change without retraining everything downstream.
var FeatureColumns = []string{
	"signal_strength",
	"confidence",
	"risk_reward_ratio",
	"rsi_14",
	"atr_pct",
	"ema_spread_pct",
	"bb_position",
	"price_vs_200ema",
	"volume_ratio",
	"volatility_regime",
	"recent_win_rate",
	"recent_avg_pnl_pct",
	"streak",
	"hour_of_day",
	"day_of_week",
	"pair_id",
	"ob_spread_pct",
	"ob_depth_imbalance",
	"ob_mid_price_momentum",
	"ob_spread_volatility",
	"ob_book_pressure",
	"ob_weighted_spread",
	"ob_best_volume_ratio",
	"ob_depth_ratio",
}

// TargetColumn holds the binary trade outcome: 1 for a win, 0 for a loss.
const TargetColumn = "win"

// NumFeatures is the width of every feature vector.
var NumFeatures = len(FeatureColumns)

var colIndex = func() map[string]int {
	m := make(map[string]int, len(FeatureColumns))
	for i, c := range FeatureColumns {
		m[c] = i
	}
	return m
}()
