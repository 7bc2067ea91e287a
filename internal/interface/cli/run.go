package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hatsuki-dev/vispanel/internal/adapter/archive"
	"github.com/hatsuki-dev/vispanel/internal/adapter/executor"
	"github.com/hatsuki-dev/vispanel/internal/adapter/vlm"
	"github.com/hatsuki-dev/vispanel/internal/domain/engine"
	"github.com/hatsuki-dev/vispanel/internal/domain/gate"
	"github.com/hatsuki-dev/vispanel/internal/domain/memory"
	embedded "github.com/hatsuki-dev/vispanel/internal/embed"
	infraConfig "github.com/hatsuki-dev/vispanel/internal/infra/config"
	"github.com/hatsuki-dev/vispanel/internal/infra/fs"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/sqlite"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/turnstore"
	"github.com/hatsuki-dev/vispanel/internal/httpapi"
	"github.com/hatsuki-dev/vispanel/internal/policy"
	"github.com/hatsuki-dev/vispanel/internal/sse"
)

// setupSignalHandler cancels its returned context on SIGINT/SIGTERM,
// letting the engine loop and HTTP server both drain in-flight work.
func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		Info("received signal %v, shutting down", sig)
		cancel()
	}()

	return ctx, cancel
}

func newRunCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine loop and HTTP panel for a new run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), noBrowser)
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "never auto-open the operator panel")
	return cmd
}

func runEngine(parentCtx context.Context, noBrowser bool) error {
	cfg := globalConfig
	logger, err := NewEngineLogger(cfg.StderrLevel())
	if err != nil {
		return fmt.Errorf("build engine logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.RunBase(), 0o755); err != nil {
		return fmt.Errorf("create run_base: %w", err)
	}
	releaseLock, err := fs.AcquireLock(filepath.Join(cfg.RunBase(), ".lock"))
	if err != nil {
		return fmt.Errorf("another vispanel run is already active under %s: %w", cfg.RunBase(), err)
	}
	defer releaseLock()

	runDir := filepath.Join(cfg.RunBase(), fmt.Sprintf("run_%s", time.Now().UTC().Format("20060102_150405")))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	Info("run directory: %s", runDir)

	store, err := turnstore.Open(runDir)
	if err != nil {
		return fmt.Errorf("open turn store: %w", err)
	}
	defer store.Close()

	pol, err := policy.Load(afero.NewOsFs(), filepath.Join(runDir, "allowed_tools.json"))
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	renderGate := gate.New()
	broker := sse.New(logger)

	execAdapter := executor.New(cfg.ExecutorBin(), "", logger)
	vlmAdapter := vlm.New(cfg.VLMBin(), logger)

	loop := engine.New(execAdapter, vlmAdapter, renderGate, store, pol, nil, logger)
	loop.ExecuteTimeout = cfg.ExecuteTimeout()
	loop.AnnotationTimeout = cfg.AnnotationTimeout()
	loop.VLMTimeout = cfg.VLMTimeout()

	memStore, err := memory.Open(filepath.Join(runDir, "memory.json"))
	if err != nil {
		return fmt.Errorf("open memory journal: %w", err)
	}
	loop.Memory = memStore

	if tmpl, err := infraConfig.LoadSystemPromptTemplate(); err != nil {
		Warn("system prompt template unavailable, VLM adapter will use its own default: %v", err)
	} else {
		loop.SystemPromptTemplate = tmpl
	}

	archiver, runIndex, closeIndex, err := setupArchival(parentCtx, cfg, runDir)
	if err != nil {
		return err
	}
	defer closeIndex()

	loop.Broker = &runRecorder{runDir: runDir, broker: broker, archiver: archiver, index: runIndex, store: store, logger: logger}

	panelHTML, err := embedded.PanelHTML()
	if err != nil {
		return fmt.Errorf("load panel page: %w", err)
	}

	srv := httpapi.New(httpapi.Options{
		ListenAddr:     cfg.ListenAddr(),
		RunDir:         runDir,
		Gate:           renderGate,
		Store:          store,
		Policy:         pol,
		Loop:           loop,
		Broker:         broker,
		Executor:       execAdapter,
		ExecuteTimeout: cfg.ExecuteTimeout(),
		PanelHTML:      panelHTML,
		Logger:         logger,
	})

	ctx, cancel := setupSignalHandler()
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()
	go func() {
		errCh <- loop.Run(ctx, engine.InitialStory)
	}()

	if cfg.AutoOpenBrowser() && !noBrowser {
		go func() {
			time.Sleep(300 * time.Millisecond)
			url := panelURL(cfg.ListenAddr())
			if err := openBrowser(url); err != nil {
				Warn("could not auto-open browser: %v", err)
			}
		}()
	}

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && err != context.Canceled && firstErr == nil {
			firstErr = err
		}
	}

	if runIndex != nil {
		if err := runIndex.EndRun(context.Background(), runDir, time.Now().UTC()); err != nil {
			Warn("could not stamp run end: %v", err)
		}
	}

	return firstErr
}

// setupArchival wires the optional S3 archiver and sqlite run-index rollup.
// Both are no-ops (archive.NoopArchiver, nil repository) when unconfigured.
func setupArchival(ctx context.Context, cfg archivalConfig, runDir string) (archive.Archiver, *sqlite.RunIndexRepository, func(), error) {
	noop := func() {}

	var archiver archive.Archiver = archive.NoopArchiver{}
	if cfg.ArchiveS3Bucket() != "" {
		s3a, err := archive.NewS3Archiver(ctx, cfg.ArchiveS3Bucket(), cfg.ArchiveS3Prefix())
		if err != nil {
			return nil, nil, noop, fmt.Errorf("configure s3 archiver: %w", err)
		}
		archiver = s3a
	}

	if cfg.RunIndexDB() == "" {
		return archiver, nil, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.RunIndexDB()), 0o755); err != nil {
		return nil, nil, noop, fmt.Errorf("create run index db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", cfg.RunIndexDB())
	if err != nil {
		return nil, nil, noop, fmt.Errorf("open run index db: %w", err)
	}
	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return nil, nil, noop, fmt.Errorf("migrate run index db: %w", err)
	}

	repo := sqlite.NewRunIndexRepository(db)
	if err := repo.StartRun(ctx, runDir, time.Now().UTC()); err != nil {
		db.Close()
		return nil, nil, noop, fmt.Errorf("start run record: %w", err)
	}

	return archiver, repo, func() { db.Close() }, nil
}

// archivalConfig is the narrow slice of appconfig.Config setupArchival
// needs, so it can be exercised without a full Config fixture.
type archivalConfig interface {
	ArchiveS3Bucket() string
	ArchiveS3Prefix() string
	RunIndexDB() string
}

func panelURL(listenAddr string) string {
	host := listenAddr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	return "http://" + host + "/"
}
