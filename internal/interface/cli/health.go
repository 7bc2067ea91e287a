package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/sqlite"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Fetch /health from a running vispanel instance, or the durable run index if none is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchHealth(globalConfig.ListenAddr())
		},
	}
}

func fetchHealth(listenAddr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(panelURL(listenAddr) + "health")
	if err != nil {
		if fallbackErr := fetchHealthFromRunIndex(); fallbackErr == nil {
			return nil
		}
		return fmt.Errorf("request /health: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read /health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("/health returned %s: %s", resp.Status, body)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(string(out))
	return nil
}

// fetchHealthFromRunIndex reports the durable run-index rollup for the most
// recent run when no live process answers /health, e.g. after a crash or a
// restart. It returns an error if no run index is configured or no run has
// ever been recorded, so the caller can fall back to the original /health
// error instead.
func fetchHealthFromRunIndex() error {
	dbPath := globalConfig.RunIndexDB()
	if dbPath == "" {
		return fmt.Errorf("no run index db configured")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open run index db: %w", err)
	}
	defer db.Close()

	rec, err := sqlite.NewRunIndexRepository(db).Latest(context.Background())
	if err != nil {
		return fmt.Errorf("query run index: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("run index is empty")
	}

	fmt.Println("no live process at this address; reporting the last known state from the durable run index")
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
