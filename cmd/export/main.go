package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"finsent-backend/cmd"
	"finsent-backend/internal/config"
	"finsent-backend/internal/core"
	"finsent-backend/internal/export"

	"github.com/schollz/progressbar/v3"
)

type flags struct {
	env        string
	configPath string

	checkpointDir  string
	weightsPath    string
	outputPath     string
	batchSize      int
	sequenceLength int
	opsetVersion   int
	folding        bool
	strict         bool
	publishURI     string
	skipVerify     bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.env, "env", "", "path to load env from")
	flag.StringVar(&f.configPath, "config", "", "path to a YAML export configuration")
	flag.StringVar(&f.checkpointDir, "checkpoint", "", "checkpoint directory with config.json and weights")
	flag.StringVar(&f.weightsPath, "weights", "", "weights file, defaults to the one found in the checkpoint directory")
	flag.StringVar(&f.outputPath, "output", "", "output ONNX file, defaults to <checkpoint>/model.onnx")
	flag.IntVar(&f.batchSize, "batch-size", 1, "batch size of the traced graph")
	flag.IntVar(&f.sequenceLength, "seq-len", 256, "sequence length of the traced graph")
	flag.IntVar(&f.opsetVersion, "opset", 11, "ONNX opset version")
	flag.BoolVar(&f.folding, "constant-folding", false, "fold constants during export")
	flag.BoolVar(&f.strict, "strict", false, "fail when checkpoint keys do not match the model")
	flag.StringVar(&f.publishURI, "publish", "", "s3://bucket/key to upload the artifact to")
	flag.BoolVar(&f.skipVerify, "skip-verify", false, "skip opening the artifact with onnxruntime")
	flag.Parse()
	return f
}

// exportConfig loads the YAML file when given and applies the flags the user
// set explicitly on top of it.
func exportConfig(f flags) export.Config {
	cfg := export.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = export.LoadConfig(f.configPath); err != nil {
			log.Fatalf("error loading export config: %v", err)
		}
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "checkpoint":
			cfg.CheckpointDir = f.checkpointDir
		case "weights":
			cfg.WeightsPath = f.weightsPath
		case "output":
			cfg.OutputPath = f.outputPath
		case "batch-size":
			cfg.BatchSize = f.batchSize
		case "seq-len":
			cfg.SequenceLength = f.sequenceLength
		case "opset":
			cfg.OpsetVersion = f.opsetVersion
		case "constant-folding":
			cfg.DoConstantFolding = f.folding
		case "strict":
			cfg.Strict = f.strict
		case "publish":
			cfg.PublishURI = f.publishURI
		case "skip-verify":
			cfg.SkipVerify = f.skipVerify
		}
	})

	return cfg
}

func main() {
	f := parseFlags()
	cmd.LoadEnvFileFrom(f.env)

	envCfg, err := config.LoadExportConfig()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	cmd.SetupLogging(envCfg.LogLevel)

	cfg := exportConfig(f)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []export.Option

	if envCfg.CheckpointS3URI != "" || cfg.PublishURI != "" {
		provider := cmd.CreateStorageProvider(ctx, envCfg.S3)
		if envCfg.CheckpointS3URI != "" {
			if cfg.CheckpointDir == "" {
				log.Fatalf("CHECKPOINT_S3_URI requires a checkpoint directory to download into")
			}
			if err := cmd.FetchCheckpoint(ctx, provider, envCfg.CheckpointS3URI, cfg.CheckpointDir); err != nil {
				log.Fatalf("Failed to fetch checkpoint: %v", err)
			}
		}
		opts = append(opts, export.WithPublisher(provider))
	}

	if db := cmd.OpenDatabase(envCfg.DatabaseURL); db != nil {
		opts = append(opts, export.WithDatabase(db))
	}

	if !cfg.SkipVerify {
		inspector, err := export.NewOnnxInspector(envCfg.Onnx.Runtime())
		if err != nil {
			log.Fatalf("Failed to initialize onnxruntime for verification: %v", err)
		}
		defer func() {
			if err := core.DestroyOnnxRuntime(); err != nil {
				slog.Error("error destroying onnx env", "error", err)
			}
		}()
		opts = append(opts, export.WithInspector(inspector))
	}

	bar := progressbar.NewOptions(len(export.Steps),
		progressbar.OptionSetDescription("exporting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	opts = append(opts, export.WithProgress(func(s export.Step) {
		bar.Describe(string(s))
		_ = bar.Add(1)
	}))

	backend, err := export.StartPluginBackend(envCfg.PythonExecutable, envCfg.PluginScript)
	if err != nil {
		log.Fatalf("Failed to start export plugin: %v", err)
	}
	defer backend.Close()

	report, err := export.NewExporter(backend, opts...).Run(ctx, cfg)
	_ = bar.Finish()
	if err != nil {
		backend.Close()
		log.Fatalf("export failed: %v", err)
	}

	log.Printf("exported %s (%d bytes), report at %s", report.OutputPath, report.ArtifactSizeBytes, report.ReportPath)
	if len(report.MissingKeys)+len(report.UnexpectedKeys) > 0 {
		log.Printf("%d missing and %d unexpected checkpoint keys were skipped, see the report", len(report.MissingKeys), len(report.UnexpectedKeys))
	}
}
