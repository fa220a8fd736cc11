// Command prune_responses deletes the stored responses of archived form templates.
//
// Deletion runs template by template in chunks under the store batch limit. A failed run
// leaves already deleted chunks applied and can simply be re-run.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/cache"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	"github.com/noah-isme/sportlearn-api/pkg/database"
	"github.com/noah-isme/sportlearn-api/pkg/logger"
)

type templateLister interface {
	List(ctx context.Context, filter models.FormTemplateFilter) ([]models.FormTemplate, error)
}

type responseDeleter interface {
	CountByTemplate(ctx context.Context, templateID string) (int, error)
	DeleteByFilter(ctx context.Context, filter models.FormResponseFilter) (int64, error)
}

type analyticsInvalidator interface {
	Invalidate(ctx context.Context, templateID string)
}

type pruner struct {
	templates templateLister
	responses responseDeleter
	analytics analyticsInvalidator
	logger    *zap.Logger
	now       func() time.Time
}

type pruneOptions struct {
	TemplateID     string
	ArchivedBefore time.Duration
	DryRun         bool
}

type pruneReport struct {
	Templates int
	Deleted   int64
}

func (p *pruner) run(ctx context.Context, opts pruneOptions) (pruneReport, error) {
	var report pruneReport

	templates, err := p.templates.List(ctx, models.FormTemplateFilter{IncludeArchived: true})
	if err != nil {
		return report, err
	}

	cutoff := p.now().Add(-opts.ArchivedBefore)
	for _, tpl := range templates {
		if !tpl.IsArchived {
			continue
		}
		if opts.TemplateID != "" && tpl.ID != opts.TemplateID {
			continue
		}
		if opts.ArchivedBefore > 0 && tpl.UpdatedAt.After(cutoff) {
			continue
		}

		tplLog := p.logger.With(zap.String("template_id", tpl.ID), zap.String("template", tpl.Name))
		if opts.DryRun {
			count, err := p.responses.CountByTemplate(ctx, tpl.ID)
			if err != nil {
				return report, err
			}
			tplLog.Info("would prune responses", zap.Int("count", count))
			report.Templates++
			report.Deleted += int64(count)
			continue
		}

		deleted, err := p.responses.DeleteByFilter(ctx, models.FormResponseFilter{TemplateID: tpl.ID})
		report.Deleted += deleted
		if err != nil {
			tplLog.Error("prune interrupted", zap.Int64("deleted", deleted), zap.Error(err))
			return report, err
		}
		report.Templates++
		if deleted > 0 && p.analytics != nil {
			p.analytics.Invalidate(ctx, tpl.ID)
		}
		tplLog.Info("pruned responses", zap.Int64("deleted", deleted))
	}
	return report, nil
}

func main() {
	var opts pruneOptions
	flag.StringVar(&opts.TemplateID, "template", "", "only prune this archived template")
	flag.DurationVar(&opts.ArchivedBefore, "archived-before", 0, "only prune templates archived at least this long ago")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "report counts without deleting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	store := repository.NewDocumentStore(db, cfg.Store.BatchLimit)
	templates := repository.NewFormTemplateRepository(store)
	responses := repository.NewFormResponseRepository(store)

	var cacheRepo *repository.CacheRepository
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, cached analytics expire on their own", zap.Error(err))
	} else {
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logr)
	}
	metrics := service.NewMetricsService()
	analytics := service.NewFormAnalyticsService(templates, responses,
		service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cacheRepo != nil),
		metrics, logr, models.ParseTrendBatching(cfg.Analytics.Batching), cfg.Analytics.CacheTTL)

	p := &pruner{templates: templates, responses: responses, analytics: analytics, logger: logr, now: time.Now}
	report, err := p.run(ctx, opts)
	if err != nil {
		logr.Sugar().Fatalw("prune failed", "error", err, "templates", report.Templates, "deleted", report.Deleted)
	}
	logr.Sugar().Infow("prune complete", "templates", report.Templates, "deleted", report.Deleted, "dry_run", opts.DryRun)
}
