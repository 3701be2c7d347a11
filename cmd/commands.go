package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/antibody"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/config"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/fasta"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/store"
)

func newNormalizeCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "normalize [input.fasta|-]",
		Short: "Unwrap FASTA sequences so every record is one header and one sequence line",
		Long:  "Unwrap FASTA sequences so every record is one header and one sequence line.\nReads stdin when no input is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			in, closeIn, err := openInput(cmd, path)
			if err != nil {
				return err
			}
			defer closeIn()

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			_, err = fasta.Normalize(in, w)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write canonical FASTA here instead of stdout")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var (
		chain  string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "classify SEQUENCE...",
		Short: "Classify individual heavy or light chain sequences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := antibody.Classifier{StrictInsertion: strict}
			t := newTable()
			switch strings.ToLower(chain) {
			case "heavy", "h":
				t.Headers("#", "verdict", "rule", "cys", "cys distance", "cdrh3", "insertion")
				for i, seq := range args {
					seq = antibody.StripPlaceholders(strings.ToUpper(seq))
					v := c.Heavy(seq)
					t.Row(strconv.Itoa(i+1), verdict(v.Normal), string(v.Rule),
						strconv.Itoa(v.CysteineCount), strconv.Itoa(v.CysDistance),
						v.LoopWithFlanks(seq), strconv.Itoa(v.InsertionLength))
				}
			case "light", "l":
				t.Headers("#", "verdict", "cys", "cys distance")
				for i, seq := range args {
					v := c.Light(antibody.StripPlaceholders(strings.ToUpper(seq)))
					t.Row(strconv.Itoa(i+1), verdict(v.Normal),
						strconv.Itoa(v.CysteineCount), strconv.Itoa(v.CysDistance))
				}
			default:
				return fmt.Errorf("unknown chain %q (want heavy or light)", chain)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&chain, "chain", "c", "heavy", "chain type: heavy or light")
	cmd.Flags().BoolVar(&strict, "strict-insertion", false, "reject heavy chains with CDRH3 insertions longer than 9 residues")
	return cmd
}

func newRunsCmd(g *globalOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List screening runs recorded in the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := config.LoadConfig(g.configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				dbPath = cfg.DBPath
			}
			if dbPath == "" {
				return fmt.Errorf("no database given (--db or db_path in config)")
			}
			s, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database written by screen --db")
	return cmd
}

func printRuns(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	t := newTable().Headers("run", "input", "normal", "irregular", "created")
	for _, r := range runs {
		t.Row(r.ID, r.Input, strconv.Itoa(r.Normal), strconv.Itoa(r.Irregular), r.CreatedAt.Local().Format(time.DateTime))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#374151")))
}

func verdict(normal bool) string {
	if normal {
		return "normal"
	}
	return "irregular"
}
