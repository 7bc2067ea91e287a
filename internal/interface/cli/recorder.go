package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hatsuki-dev/vispanel/internal/adapter/archive"
	"github.com/hatsuki-dev/vispanel/internal/domain/model"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/sqlite"
	"github.com/hatsuki-dev/vispanel/internal/infra/persistence/turnstore"
	"github.com/hatsuki-dev/vispanel/internal/sse"
)

// runRecorder fans a persisted turn out to every post-persist consumer: the
// live SSE broker, the optional off-box archiver, and the optional durable
// run-index rollup. It implements engine.Broadcaster.
type runRecorder struct {
	runDir   string
	broker   *sse.Broker
	archiver archive.Archiver
	index    *sqlite.RunIndexRepository
	store    *turnstore.TurnStore
	logger   *zap.Logger
}

func (r *runRecorder) Broadcast(turn model.Turn) {
	if r.broker != nil {
		r.broker.Broadcast(turn)
	}

	ctx := context.Background()

	if r.index != nil {
		errKind := ""
		if len(turn.Errors) > 0 {
			errKind = turn.Errors[len(turn.Errors)-1]
		}
		totalTokens := turn.Usage.PromptTokens + turn.Usage.CompletionTokens
		if r.store != nil {
			totalTokens = r.store.TotalTokens()
		}
		if err := r.index.UpdateProgress(ctx, r.runDir, turn.Seq, errKind, totalTokens); err != nil && r.logger != nil {
			r.logger.Warn("run index update failed", zap.Int("seq", turn.Seq), zap.Error(err))
		}
	}

	if r.archiver == nil {
		return
	}
	if _, ok := r.archiver.(archive.NoopArchiver); ok {
		return
	}

	turnJSON, err := json.Marshal(turn)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("archive marshal failed", zap.Int("seq", turn.Seq), zap.Error(err))
		}
		return
	}

	var pngBytes []byte
	if turn.AnnotatedRef != "" {
		pngBytes, err = os.ReadFile(filepath.Join(r.runDir, turn.AnnotatedRef))
		if err != nil && r.logger != nil {
			r.logger.Warn("archive png read failed", zap.Int("seq", turn.Seq), zap.Error(err))
		}
	}

	if err := r.archiver.ArchiveTurn(ctx, r.runDir, turn.Seq, turnJSON, pngBytes); err != nil && r.logger != nil {
		r.logger.Warn("archive upload failed", zap.Int("seq", turn.Seq), zap.Error(err))
	}
}
