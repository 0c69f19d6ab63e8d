// cmd/aegishive/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegislab/aegishive/internal/audit"
	"github.com/aegislab/aegishive/internal/config"
	"github.com/aegislab/aegishive/internal/dataset"
	"github.com/aegislab/aegishive/internal/detect"
	"github.com/aegislab/aegishive/internal/forensic"
	"github.com/aegislab/aegishive/internal/history"
	"github.com/aegislab/aegishive/internal/model"
	"github.com/aegislab/aegishive/internal/server"
	"github.com/aegislab/aegishive/internal/simulator"
	"github.com/aegislab/aegishive/internal/trainer"
	"github.com/aegislab/aegishive/internal/watcher"
)

var rootCmd = &cobra.Command{
	Use:   "aegishive",
	Short: "Network intrusion triage with behavioral detection and AI forensics",
}

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection orchestrator (watcher + submission endpoint + dashboard)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

var (
	trainData      string
	trainOut       string
	trainMaxBenign int
	trainSeed      int64
	trainEpochs    int
	trainLR        float64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the behavioral classifier from labeled telemetry CSVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := dataset.LoadDir(trainData)
		if err != nil {
			return err
		}
		log.Printf("Loaded %d labeled rows from %s", len(records), trainData)

		balanced := dataset.Balance(records, trainMaxBenign, trainSeed)
		if len(balanced) != len(records) {
			log.Printf("Downsampled benign class: %d rows remain", len(balanced))
		}

		opts := trainer.DefaultOptions()
		opts.Seed = trainSeed
		opts.Epochs = trainEpochs
		opts.LearningRate = trainLR

		clf, eval, err := trainer.Train(balanced, opts)
		if err != nil {
			return err
		}
		fmt.Print(eval.String())

		if err := clf.Save(trainOut); err != nil {
			return err
		}
		log.Printf("Model saved to %s", trainOut)
		return nil
	},
}

var (
	ingestSrc string
	ingestOut string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Convert raw Zeek conn logs into labeled training CSVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		logs, err := filepath.Glob(filepath.Join(ingestSrc, "*.log"))
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			return fmt.Errorf("no .log files found in %s", ingestSrc)
		}

		converted := 0
		for _, path := range logs {
			rows, outPath, err := dataset.ConvertZeek(path, ingestOut)
			if err != nil {
				log.Printf("Skipping %s: %v", filepath.Base(path), err)
				continue
			}
			label := dataset.LabelFromFilename(filepath.Base(path))
			log.Printf("Converted %s: %d rows -> %s (label %d)", filepath.Base(path), rows, outPath, label)
			converted++
		}
		if converted == 0 {
			return fmt.Errorf("no files converted")
		}
		return nil
	},
}

var (
	simTarget      string
	simCount       int
	simAttackEvery int
	simSeed        int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Submit synthetic telemetry to a running endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		runner := simulator.NewRunner(simulator.Config{
			TargetURL:   simTarget,
			APIKey:      os.Getenv("AEGIS_API_KEY"),
			Count:       simCount,
			AttackEvery: simAttackEvery,
			Seed:        simSeed,
		})
		return runner.Run(ctx)
	},
}

var uplinkCmd = &cobra.Command{
	Use:   "uplink",
	Short: "Check connectivity to the forensic analysis provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		reporter := newReporter(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := reporter.Ping(ctx); err != nil {
			return fmt.Errorf("uplink check failed: %w", err)
		}
		fmt.Println("Uplink: ONLINE")
		return nil
	},
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ledger := history.New(cfg.History.Capacity)

	capture, err := audit.Open(cfg.Capture.Path)
	if err != nil {
		return fmt.Errorf("open capture log: %w", err)
	}
	defer capture.Close()

	// The classifier is loaded once and shared read-only by both
	// ingress paths. A missing artifact disables detection but keeps
	// the dashboard and metrics surfaces alive.
	var engine *detect.Engine
	clf, err := model.Load(cfg.Model.Path)
	if err != nil {
		log.Printf("CRITICAL: %v - detection paths disabled, dashboard only", err)
	} else {
		engine = detect.NewEngine(clf, cfg.Model.Threshold)
		log.Printf("Behavioral model loaded: %d features, threshold %.2f", len(clf.FeatureNames), engine.Threshold())
	}

	reporter := newReporter(cfg)

	if engine != nil {
		w := watcher.New(cfg.Watcher.Dir, cfg.Watcher.PollInterval(), engine, reporter, ledger)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	} else {
		log.Printf("Watcher refusing to start: no classifier")
	}

	srv := server.New(cfg, engine, reporter, ledger, capture)
	return srv.Run(ctx)
}

// newReporter builds the forensic fallback chain, dropping endpoints
// whose credential is absent from the environment.
func newReporter(cfg *config.Config) *forensic.Reporter {
	var endpoints []forensic.Endpoint
	timeout := time.Duration(0)
	for _, ep := range cfg.Forensic {
		if ep.APIKeyEnv != "" && ep.APIKey == "" {
			log.Printf("Forensic endpoint %s disabled: %s not set", ep.Model, ep.APIKeyEnv)
			continue
		}
		endpoints = append(endpoints, forensic.Endpoint{
			URL:    ep.URL,
			Model:  ep.Model,
			APIKey: ep.APIKey,
		})
		if t := time.Duration(ep.TimeoutSeconds) * time.Second; t > timeout {
			timeout = t
		}
	}
	if len(endpoints) == 0 {
		log.Printf("WARNING: no forensic endpoints available, reports degrade to fallback text")
	}
	return forensic.NewReporter(endpoints, timeout)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	trainCmd.Flags().StringVar(&trainData, "data", "data/processed", "directory of labeled training CSVs")
	trainCmd.Flags().StringVar(&trainOut, "out", "models/aegis_model.json", "output model artifact path")
	trainCmd.Flags().IntVar(&trainMaxBenign, "max-benign", 10000, "cap on benign rows after balancing")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 42, "random seed")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 200, "SGD epochs")
	trainCmd.Flags().Float64Var(&trainLR, "lr", 0.1, "SGD learning rate")

	ingestCmd.Flags().StringVar(&ingestSrc, "src", "data/raw/zeek", "directory of Zeek conn logs")
	ingestCmd.Flags().StringVar(&ingestOut, "out", "data/processed", "output directory for labeled CSVs")

	simulateCmd.Flags().StringVar(&simTarget, "target", "http://127.0.0.1:8000", "base URL of a running orchestrator")
	simulateCmd.Flags().IntVar(&simCount, "count", 50, "number of records to submit")
	simulateCmd.Flags().IntVar(&simAttackEvery, "attack-every", 10, "inject one attack burst per N records (0 disables)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "fake data seed (0 = random)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(uplinkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
