package providers

import (
	"context"
	"sync"
	"time"

	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/similarity"
	"github.com/librisapp/libris-server/internal/watcher"
)

const sessionCleanupInterval = time.Hour

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob starts the periodic removal of expired sessions.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	go sessions.RunCleanup(ctx, sessionCleanupInterval)

	log.Info("Session cleanup job started", "interval", sessionCleanupInterval)
	return &SessionCleanupJob{cancel: cancel}, nil
}

// DropFolderHandle runs the similarity drop folder when one is configured.
type DropFolderHandle struct {
	*similarity.DropFolder
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable.
func (h *DropFolderHandle) Shutdown() error {
	if h.DropFolder == nil {
		return nil
	}
	h.cancel()
	h.wg.Wait()
	return nil
}

// ProvideDropFolder watches cfg.Similarity.WatchDir for similarity files.
func ProvideDropFolder(i do.Injector) (*DropFolderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Similarity.WatchDir == "" {
		log.Info("Similarity drop folder disabled")
		return &DropFolderHandle{}, nil
	}

	importer := do.MustInvoke[*similarity.Importer](i)
	folder, err := similarity.NewDropFolder(importer, cfg.Similarity.WatchDir,
		similarity.Options{Symmetrize: cfg.Similarity.Symmetrize},
		watcher.Options{SettleDelay: cfg.Similarity.Debounce},
		log.WithComponent("dropfolder").Logger,
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &DropFolderHandle{DropFolder: folder, cancel: cancel}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := folder.Run(ctx); err != nil {
			log.Error("Similarity drop folder stopped", "error", err)
		}
	}()

	return h, nil
}
