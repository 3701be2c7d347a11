package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/antibody"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/config"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/screen"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/store"
)

type screenOptions struct {
	*globalOptions
	accepted        string
	filtered        string
	reportPath      string
	dbPath          string
	spoolDir        string
	strictInsertion bool
	stripFiltered   bool
	dryRun          bool
}

func newScreenCmd(g *globalOptions) *cobra.Command {
	opts := &screenOptions{globalOptions: g}
	cmd := &cobra.Command{
		Use:   "screen [input.fasta|-]",
		Short: "Partition paired heavy/light chains into normal and filtered outputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreen(cmd, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.accepted, "accepted", "", "output FASTA for normal pairs (default "+config.DefaultAcceptedOutput+")")
	f.StringVar(&opts.filtered, "filtered", "", "output FASTA for filtered pairs (default "+config.DefaultFilteredOutput+")")
	f.StringVar(&opts.reportPath, "report", "", "write a JSON report of every pair to this path")
	f.StringVar(&opts.dbPath, "db", "", "record the run in this SQLite database")
	f.StringVar(&opts.spoolDir, "spool-dir", "", "spool the unwrapped input to a temp file in this directory")
	f.BoolVar(&opts.strictInsertion, "strict-insertion", false, "reject heavy chains with CDRH3 insertions longer than 9 residues")
	f.BoolVar(&opts.stripFiltered, "strip-filtered", false, "write filtered pairs with X placeholders removed")
	f.BoolVar(&opts.dryRun, "dry-run", false, "classify and report counts without writing any output")
	return cmd
}

// mergeFlags applies explicitly set flags over the loaded config.
func (o *screenOptions) mergeFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) == 1 {
		cfg.InputFasta = args[0]
	}
	changed := cmd.Flags().Changed
	if changed("accepted") {
		cfg.AcceptedOutput = o.accepted
	}
	if changed("filtered") {
		cfg.FilteredOutput = o.filtered
	}
	if changed("report") {
		cfg.ReportJSON = o.reportPath
	}
	if changed("db") {
		cfg.DBPath = o.dbPath
	}
	if changed("spool-dir") {
		cfg.SpoolDir = o.spoolDir
	}
	if o.strictInsertion {
		cfg.StrictInsertion = true
	}
	if o.stripFiltered {
		cfg.StripFiltered = true
	}
}

func runScreen(cmd *cobra.Command, opts *screenOptions, args []string) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.mergeFlags(cmd, cfg, args)
	if cfg.InputFasta == "" {
		return errors.New("no input FASTA given (argument or input_fasta in config)")
	}

	logger, closeLog := newLogger(cmd.ErrOrStderr(), cfg.LogFile, cfg.LogLevel, opts.verbose)
	defer closeLog()
	logger.Debug("loaded config", "input_fasta", cfg.InputFasta, "accepted_output", cfg.AcceptedOutput,
		"filtered_output", cfg.FilteredOutput, "report_json", cfg.ReportJSON, "db_path", cfg.DBPath,
		"strict_insertion", cfg.StrictInsertion, "strip_filtered", cfg.StripFiltered)

	in, closeIn, err := openInput(cmd, cfg.InputFasta)
	if err != nil {
		return err
	}
	defer closeIn()

	var accepted, filtered io.Writer = io.Discard, io.Discard
	if opts.dryRun {
		logger.Info("dry-run: outputs will not be written")
	} else {
		af, err := os.Create(cfg.AcceptedOutput)
		if err != nil {
			return fmt.Errorf("create accepted output: %w", err)
		}
		defer af.Close()
		ff, err := os.Create(cfg.FilteredOutput)
		if err != nil {
			return fmt.Errorf("create filtered output: %w", err)
		}
		defer ff.Close()
		accepted, filtered = af, ff
	}

	logger.Info("screening", "input", cfg.InputFasta)
	start := time.Now()
	res, err := screen.Run(screen.Config{
		Accepted:        accepted,
		Filtered:        filtered,
		Classifier:      antibody.Classifier{StrictInsertion: cfg.StrictInsertion},
		StripFiltered:   cfg.StripFiltered,
		CollectPairs:    !opts.dryRun && (cfg.ReportJSON != "" || cfg.DBPath != ""),
		SpoolDir:        cfg.SpoolDir,
		Logger:          logger,
	}, in)
	if err != nil {
		return err
	}
	logger.Info("screening finished", "records", res.Records, "normal", res.Normal,
		"irregular", res.Irregular, "skipped_groups", len(res.Diagnostics), "duration_ms", time.Since(start).Milliseconds())

	if !opts.dryRun {
		if err := persist(cmd.Context(), logger, cfg, res); err != nil {
			return err
		}
		logger.Info("wrote outputs", "accepted", cfg.AcceptedOutput, "filtered", cfg.FilteredOutput)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "You have entered %d normal antibodies, %d irregular antibodies\n", res.Normal, res.Irregular)
	return nil
}

// persist writes the JSON report and records the run in the store, when
// either is configured.
func persist(ctx context.Context, logger *log.Logger, cfg *config.Config, res *screen.Result) error {
	if cfg.ReportJSON == "" && cfg.DBPath == "" {
		return nil
	}
	rep := &report.Report{
		Input:     cfg.InputFasta,
		CreatedAt: time.Now().UTC(),
		Normal:    res.Normal,
		Irregular: res.Irregular,
		Pairs:     res.Pairs,
	}
	for _, d := range res.Diagnostics {
		rep.Diagnostics = append(rep.Diagnostics, d.Error())
	}

	if cfg.DBPath != "" {
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		id, err := s.SaveRun(ctx, rep)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		logger.Info("recorded run", "db", cfg.DBPath, "run_id", id)
	}
	if cfg.ReportJSON != "" {
		if err := report.Write(cfg.ReportJSON, rep); err != nil {
			return err
		}
		logger.Info("wrote report", "path", cfg.ReportJSON, "pairs", len(rep.Pairs))
	}
	return nil
}

// openInput opens path, or stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
