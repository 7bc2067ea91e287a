package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/sqlite"
	"github.com/hatsuki-dev/vispanel/internal/validator/common"
	healthvalidator "github.com/hatsuki-dev/vispanel/internal/validator/health"
	turnsvalidator "github.com/hatsuki-dev/vispanel/internal/validator/turns"
)

func newDoctorCmd() *cobra.Command {
	var runDir string
	var listRuns bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Offline-validate a run directory's health.json and turns.jsonl",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listRuns {
				return printIndexedRuns(globalConfig.RunIndexDB())
			}
			if runDir == "" {
				dir, err := latestRunDir(globalConfig.RunBase())
				if err != nil {
					dir, err = latestRunDirFromIndex(globalConfig.RunIndexDB())
					if err != nil {
						return fmt.Errorf("no run directory under run_base and no fallback in run index: %w", err)
					}
					fmt.Printf("run_base has no run directories; using most recent run from the durable index: %s\n", dir)
				}
				runDir = dir
			} else {
				warnIfUnknownToIndex(globalConfig.RunIndexDB(), runDir)
			}
			return runDoctor(runDir)
		},
	}
	cmd.Flags().StringVar(&runDir, "run-dir", "", "run directory to inspect (defaults to the most recent under run_base)")
	cmd.Flags().BoolVar(&listRuns, "list-runs", false, "list every run recorded in the durable run index and exit")
	return cmd
}

// printIndexedRuns prints every run the durable index has ever recorded,
// most recent first, without touching any files under run_base.
func printIndexedRuns(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("no run index db configured")
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open run index db: %w", err)
	}
	defer db.Close()

	runs, err := sqlite.NewRunIndexRepository(db).List(context.Background())
	if err != nil {
		return fmt.Errorf("query run index: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded in the run index")
		return nil
	}
	for _, r := range runs {
		status := "running"
		if r.EndedAt.Valid {
			status = "ended " + r.EndedAt.Time.Format(time.RFC3339)
		}
		fmt.Printf("%s  seq=%d  tokens=%d  %s\n", r.RunDir, r.LastSeq, r.TotalTokens, status)
	}
	return nil
}

// latestRunDirFromIndex falls back to the durable run-index rollup for the
// most recent run's directory when run_base itself is empty or gone, e.g.
// after the local run directory was cleaned up but the index survived.
func latestRunDirFromIndex(dbPath string) (string, error) {
	if dbPath == "" {
		return "", fmt.Errorf("no run index db configured")
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return "", fmt.Errorf("open run index db: %w", err)
	}
	defer db.Close()

	rec, err := sqlite.NewRunIndexRepository(db).Latest(context.Background())
	if err != nil {
		return "", fmt.Errorf("query run index: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("run index is empty")
	}
	return rec.RunDir, nil
}

// warnIfUnknownToIndex is a best-effort cross-check that an explicitly
// requested run directory is also tracked in the durable index; it never
// fails the doctor run, since a directory can be validated offline whether
// or not the index knows about it (e.g. no run_index_db configured).
func warnIfUnknownToIndex(dbPath, runDir string) {
	if dbPath == "" {
		return
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return
	}
	defer db.Close()

	rec, err := sqlite.NewRunIndexRepository(db).Find(context.Background(), runDir)
	if err != nil || rec == nil {
		fmt.Printf("note: %s is not recorded in the run index\n", runDir)
	}
}

func latestRunDir(runBase string) (string, error) {
	entries, err := os.ReadDir(runBase)
	if err != nil {
		return "", fmt.Errorf("list run_base %s: %w", runBase, err)
	}

	var latest string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if latest == "" || e.Name() > latest {
			latest = e.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no run directories found under %s", runBase)
	}
	return filepath.Join(runBase, latest), nil
}

func runDoctor(runDir string) error {
	healthResult, err := healthvalidator.ValidateHealthFile(filepath.Join(runDir, "health.json"))
	if err != nil {
		return fmt.Errorf("validate health.json: %w", err)
	}

	turnsResult, err := turnsvalidator.ValidateTurnsFile(filepath.Join(runDir, "turns.jsonl"))
	if err != nil {
		return fmt.Errorf("validate turns.jsonl: %w", err)
	}

	printValidation("health.json", healthResult)
	printValidation("turns.jsonl", turnsResult)

	if healthResult.Summary.Error > 0 || turnsResult.Summary.Error > 0 {
		return fmt.Errorf("doctor found validation errors in %s", runDir)
	}
	return nil
}

func printValidation(label string, result *common.ValidationResult) {
	fmt.Printf("=== %s: %d ok, %d warn, %d error ===\n", label, result.Summary.OK, result.Summary.Warn, result.Summary.Error)
	for _, file := range result.Files {
		for _, issue := range file.Issues {
			line := fmt.Sprintf("[%s] %s", issue.Type, issue.Message)
			if issue.Field != "" {
				line = fmt.Sprintf("[%s] %s: %s", issue.Type, issue.Field, issue.Message)
			}
			fmt.Println(line)
		}
	}
}
