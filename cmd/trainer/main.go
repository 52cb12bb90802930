package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ensemble-trainer/internal/cfg"
	"ensemble-trainer/internal/dataset"
	"ensemble-trainer/internal/ensemble"
	"ensemble-trainer/internal/eval"
	"ensemble-trainer/internal/model"
	"ensemble-trainer/internal/onnx"
)

const (
	boostArtifact   = "xgboost.onnx"
	forestArtifact  = "random_forest.onnx"
	probeRows       = 5
	minReliableRows = 50
)

func main() {
	// Parse command line arguments
	var (
		dataPath  = flag.String("data", "", "Path or URL of the training trades CSV")
		outputDir = flag.String("output", "", "Output directory for ONNX artifacts")
		folds     = flag.Int("folds", 0, "Walk-forward fold count")
		logLevel  = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Local overrides from a .env file, if present
	_ = godotenv.Load()

	// Load configuration
	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Override config with command line arguments
	if *dataPath != "" {
		settings.DataPath = *dataPath
	}
	if *outputDir != "" {
		settings.OutputDir = *outputDir
	}
	if *folds > 0 {
		settings.Folds = *folds
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	runID := uuid.New().String()

	// Print configuration
	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Run ID: %s\n", runID)
	fmt.Printf("Data Source: %s\n", settings.DataPath)
	fmt.Printf("Output Directory: %s\n", settings.OutputDir)
	fmt.Printf("Walk-Forward Folds: %d\n", settings.Folds)
	fmt.Printf("Log Level: %s\n", settings.LogLevel)
	fmt.Println("==============================")

	// Load dataset
	tbl, err := dataset.Load(settings.DataPath, settings.HTTPTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training data")
	}
	wins := tbl.Wins()
	losses := tbl.Len() - wins
	fmt.Printf("Loaded %d trades: %d wins (%.1f%%), %d losses (%.1f%%)\n",
		tbl.Len(), wins, pct(wins, tbl.Len()), losses, pct(losses, tbl.Len()))
	if tbl.Len() < minReliableRows {
		log.Warn().Int("rows", tbl.Len()).Msg("Fewer than 50 trades, results may be unreliable")
	}

	// Walk-forward validation for both trainers
	boostCV := runWalkForward("XGBoost", tbl, settings.Folds, func(x [][]float64, y []int) (model.Classifier, error) {
		return model.NewBoostingTrainer().Fit(x, y)
	})
	forestCV := runWalkForward("Random Forest", tbl, settings.Folds, func(x [][]float64, y []int) (model.Classifier, error) {
		return model.NewForestTrainer().Fit(x, y)
	})

	// Chronological holdout split for the final models
	train, test, err := dataset.HoldoutSplit(tbl, dataset.DefaultTrainFraction)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to split dataset")
	}
	fmt.Printf("\nTrain: %d rows, Test: %d rows\n", train.Len(), test.Len())

	fmt.Println("\n=== Final Model Training ===")
	boosted, err := model.NewBoostingTrainer().Fit(train.X, train.Y)
	if err != nil {
		log.Fatal().Err(err).Msg("XGBoost training failed")
	}
	forest, err := model.NewForestTrainer().Fit(train.X, train.Y)
	if err != nil {
		log.Fatal().Err(err).Msg("Random forest training failed")
	}

	boostProbs := winProbabilities(boosted, test.X)
	forestProbs := winProbabilities(forest, test.X)

	boostAcc, boostAUC := holdoutReport("XGBoost", boosted.FeatureImportance(), boostProbs, test.Y)
	forestAcc, forestAUC := holdoutReport("Random Forest", forest.FeatureImportance(), forestProbs, test.Y)

	// Ensemble evaluation on the same holdout
	fmt.Println("\n=== Ensemble Evaluation ===")
	blend := ensemble.DefaultPolicy()
	blended, err := blend.Evaluate(boostProbs, forestProbs, test.Y)
	if err != nil {
		log.Fatal().Err(err).Msg("Ensemble evaluation failed")
	}
	fmt.Printf("Blend %.1f/%.1f, win at %.2f: accuracy %.3f, AUC %.3f\n",
		blend.BoostWeight, blend.ForestWeight, blend.Threshold, blended.Accuracy, blended.AUC)
	fmt.Println(blended.Report.String())

	// Export both artifacts before deciding the exit
	fmt.Println("=== Export ===")
	probe := test.X
	if len(probe) > probeRows {
		probe = probe[:probeRows]
	}
	boostPath := filepath.Join(settings.OutputDir, boostArtifact)
	forestPath := filepath.Join(settings.OutputDir, forestArtifact)
	boostOK := exportAndVerify(boostPath, boosted.TreeEnsemble(), boosted, probe)
	forestOK := exportAndVerify(forestPath, forest.TreeEnsemble(), forest, probe)
	if !boostOK || !forestOK {
		log.Fatal().Msg("One or more artifacts failed to export")
	}

	// Final summary
	fmt.Println("\n=== TRAINING COMPLETE ===")
	fmt.Printf("XGBoost:       accuracy=%.3f auc=%.3f overfit=%.2f\n", boostAcc, boostAUC, boostCV.OverfitRatio)
	fmt.Printf("Random Forest: accuracy=%.3f auc=%.3f overfit=%.2f\n", forestAcc, forestAUC, forestCV.OverfitRatio)
	fmt.Printf("Ensemble:      accuracy=%.3f auc=%.3f\n", blended.Accuracy, blended.AUC)
	fmt.Printf("Artifacts: %s, %s\n", boostPath, forestPath)

	log.Info().
		Str("run_id", runID).
		Str("output", settings.OutputDir).
		Msg("Training completed successfully")
}

// runWalkForward prints the expanding-window diagnostics for one trainer.
func runWalkForward(name string, tbl *dataset.Table, folds int, fit eval.FitFunc) *eval.Summary {
	fmt.Printf("\n=== %s Walk-Forward Validation ===\n", name)
	summary, err := eval.Evaluate(tbl, fit, folds)
	if err != nil {
		log.Fatal().Err(err).Str("model", name).Msg("Walk-forward validation failed")
	}
	for i, fold := range summary.Folds {
		fmt.Printf("  Fold %d: train_acc=%.3f test_acc=%.3f test_auc=%.3f\n",
			i+1, fold.TrainAccuracy, fold.TestAccuracy, fold.TestAUC)
	}
	fmt.Printf("  Mean: train_acc=%.3f test_acc=%.3f test_auc=%.3f\n",
		summary.MeanTrainAccuracy, summary.MeanTestAccuracy, summary.MeanTestAUC)
	fmt.Printf("  Overfit ratio: %.2f\n", summary.OverfitRatio)
	if summary.OverfitRatio > 1.15 {
		log.Warn().Str("model", name).Float64("ratio", summary.OverfitRatio).Msg("Large train/test accuracy gap, likely overfitting")
	}
	return summary
}

// holdoutReport prints holdout metrics and top features for one model.
func holdoutReport(name string, importance, probs []float64, truth []int) (float64, float64) {
	pred := make([]int, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			pred[i] = 1
		}
	}
	acc := eval.Accuracy(pred, truth)
	auc, err := eval.AUC(probs, truth)
	if err != nil {
		log.Fatal().Err(err).Str("model", name).Msg("Holdout AUC computation failed")
	}

	fmt.Printf("\n%s holdout: accuracy %.3f, AUC %.3f\n", name, acc, auc)
	fmt.Println("Top features:")
	for _, rf := range model.TopFeatures(importance, dataset.FeatureColumns, 5) {
		fmt.Printf("  %-22s %.3f\n", rf.Name, rf.Score)
	}
	return acc, auc
}

// exportAndVerify writes one artifact and replays it against the fitted
// model. A probability mismatch is advisory; failing to write or reload
// the artifact is not.
func exportAndVerify(path string, ens *model.TreeEnsemble, ref model.Classifier, probe [][]float64) bool {
	size, err := onnx.Export(path, ens)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Export failed")
		return false
	}
	fmt.Printf("Exported %s (%.1f KB)\n", path, float64(size)/1024)

	res, err := onnx.VerifyRoundTrip(path, ref, probe, onnx.DefaultTolerance)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Round-trip verification failed")
		return false
	}
	if res.OK {
		fmt.Printf("Verified %s: max_diff=%.6f over %d rows OK\n", filepath.Base(path), res.MaxDiff, res.Checked)
	} else {
		fmt.Printf("Verified %s: max_diff=%.6f MISMATCH!\n", filepath.Base(path), res.MaxDiff)
		log.Warn().Str("path", path).Float64("max_diff", res.MaxDiff).Msg("Exported model diverges from in-process predictions")
	}
	return true
}

func winProbabilities(clf model.Classifier, x [][]float64) []float64 {
	probs := make([]float64, len(x))
	for i, row := range x {
		probs[i] = clf.PredictProbability(row)
	}
	return probs
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
