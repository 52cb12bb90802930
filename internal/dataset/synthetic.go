package dataset

import (
	"math"
	"math/rand"
)

// Synthetic generates a deterministic table with a learnable win signal,
// used by tests and local smoke runs. The win probability of a row is a
// logistic function of signal strength, confidence and risk/reward, so a
// reasonable model should beat a coin flip on it.
func Synthetic(n int, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))

	tbl := &Table{
		X: make([][]float64, n),
		Y: make([]int, n),
	}

	streak := 0.0
	for i := 0; i < n; i++ {
		row := make([]float64, NumFeatures)

		signal := rng.Float64()
		conf := 0.3 + 0.7*rng.Float64()
		rr := 1 + 2*rng.Float64()

		row[colIndex["signal_strength"]] = signal
		row[colIndex["confidence"]] = conf
		row[colIndex["risk_reward_ratio"]] = rr
		row[colIndex["rsi_14"]] = 20 + 60*rng.Float64()
		row[colIndex["atr_pct"]] = 0.2 + 1.8*rng.Float64()
		row[colIndex["ema_spread_pct"]] = rng.NormFloat64() * 0.5
		row[colIndex["bb_position"]] = rng.Float64()
		row[colIndex["price_vs_200ema"]] = rng.NormFloat64() * 2
		row[colIndex["volume_ratio"]] = 0.5 + rng.Float64()*2
		row[colIndex["volatility_regime"]] = float64(rng.Intn(3))
		row[colIndex["recent_win_rate"]] = rng.Float64()
		row[colIndex["recent_avg_pnl_pct"]] = rng.NormFloat64() * 0.8
		row[colIndex["streak"]] = streak
		row[colIndex["hour_of_day"]] = float64(rng.Intn(24))
		row[colIndex["day_of_week"]] = float64(rng.Intn(7))
		row[colIndex["pair_id"]] = float64(rng.Intn(6))
		row[colIndex["ob_spread_pct"]] = 0.01 + rng.Float64()*0.1
		row[colIndex["ob_depth_imbalance"]] = rng.NormFloat64() * 0.3
		row[colIndex["ob_mid_price_momentum"]] = rng.NormFloat64() * 0.05
		row[colIndex["ob_spread_volatility"]] = rng.Float64() * 0.02
		row[colIndex["ob_book_pressure"]] = rng.NormFloat64() * 0.4
		row[colIndex["ob_weighted_spread"]] = 0.01 + rng.Float64()*0.05
		row[colIndex["ob_best_volume_ratio"]] = 0.2 + rng.Float64()*1.6
		row[colIndex["ob_depth_ratio"]] = 0.5 + rng.Float64()

		logit := 3*(signal-0.5) + 2*(conf-0.65) + 0.8*(rr-2) + 0.3*rng.NormFloat64()
		win := rng.Float64() < 1/(1+math.Exp(-logit))

		if win {
			tbl.Y[i] = 1
			if streak < 0 {
				streak = 0
			}
			streak++
		} else {
			if streak > 0 {
				streak = 0
			}
			streak--
		}

		tbl.X[i] = row
	}

	return tbl
}
