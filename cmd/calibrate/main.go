// Command calibrate runs an offline threshold calibration over a labeled
// score file and optionally commits the result so the API serves it.
//
// Usage:
//
//	go run ./cmd/calibrate -input scores.csv                  # Report only
//	go run ./cmd/calibrate -input scores.csv -commit          # Adopt the threshold
//	go run ./cmd/calibrate -input scores.csv -objective cost  # Cost-based objective
//
// The input is CSV with two columns per row: score (float in [0,1]) and
// label (0 or 1). A header row is skipped when present. With -commit the
// result is persisted to DATABASE_URL when set, otherwise to THRESHOLD_PATH.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/bedaniele0/fraud-detection/internal/calibration"
	"github.com/bedaniele0/fraud-detection/internal/config"
	"github.com/bedaniele0/fraud-detection/internal/threshold"
)

func main() {
	input := flag.String("input", "", "CSV file of score,label rows (default: stdin)")
	objective := flag.String("objective", "", "calibration objective: f1 or cost (default: from config)")
	fpCost := flag.Float64("fp-cost", 0, "false positive unit cost (cost objective)")
	fnCost := flag.Float64("fn-cost", 0, "false negative unit cost (cost objective)")
	commit := flag.Bool("commit", false, "adopt the calibrated threshold")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var r io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	scores, labels, err := readDataset(r)
	if err != nil {
		log.Fatalf("read dataset: %v", err)
	}

	opts := calibration.Options{
		Objective:         calibration.Objective(cfg.CalibrationObjective),
		FalsePositiveCost: cfg.FalsePositiveCost,
		FalseNegativeCost: cfg.FalseNegativeCost,
	}
	if *objective != "" {
		opts.Objective = calibration.Objective(*objective)
	}
	if *fpCost > 0 {
		opts.FalsePositiveCost = *fpCost
	}
	if *fnCost > 0 {
		opts.FalseNegativeCost = *fnCost
	}

	result, err := calibration.Calibrate(scores, labels, opts)
	if err != nil {
		log.Fatalf("calibrate: %v", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if !*commit {
		return
	}

	store, cleanup, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	cell := threshold.NewCell(store)
	snap, err := cell.Commit(ctx, result)
	if err != nil {
		log.Fatalf("commit threshold: %v", err)
	}
	fmt.Printf("threshold %.2f adopted (%s)\n", snap.Value, snap.AdoptedAt.Format("2006-01-02 15:04:05"))
}

// readDataset parses score,label rows, skipping an optional header.
func readDataset(r io.Reader) ([]float64, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	var scores []float64
	var labels []int
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line++

		score, serr := strconv.ParseFloat(rec[0], 64)
		label, lerr := strconv.Atoi(rec[1])
		if serr != nil || lerr != nil {
			if line == 1 {
				continue // header row
			}
			return nil, nil, fmt.Errorf("line %d: expected score,label", line)
		}
		if score < 0 || score > 1 {
			return nil, nil, fmt.Errorf("line %d: score %v outside [0, 1]", line, score)
		}
		if label != 0 && label != 1 {
			return nil, nil, fmt.Errorf("line %d: label must be 0 or 1", line)
		}
		scores = append(scores, score)
		labels = append(labels, label)
	}
	return scores, labels, nil
}

// openStore picks the same persistence backend the server would use.
func openStore(cfg *config.Config) (threshold.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return threshold.NewFileStore(cfg.ThresholdPath), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	store := threshold.NewPostgresStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}
