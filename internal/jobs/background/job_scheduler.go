package background

import (
	"context"
	"log"
	"time"

	"pricecompare/internal/repositories"
	"pricecompare/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler runs the periodic maintenance jobs: catalog statistics
// refresh and a referential integrity audit. Request handling never depends
// on either.
type JobScheduler struct {
	scheduler gocron.Scheduler
	statsSvc  services.StatsService
	nodeRepo  repositories.NodeRepository
}

func NewJobScheduler(statsSvc services.StatsService, nodeRepo repositories.NodeRepository) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		statsSvc:  statsSvc,
		nodeRepo:  nodeRepo,
	}
	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	_, err := js.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(js.refreshCatalogStats, context.Background()),
		gocron.WithName("catalog-stats-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	_, err = js.scheduler.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(js.auditIntegrity, context.Background()),
		gocron.WithName("catalog-integrity-audit"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (js *JobScheduler) refreshCatalogStats(ctx context.Context) {
	stats, err := js.statsSvc.Refresh(ctx)
	if err != nil {
		log.Printf("WARN: catalog stats refresh failed: %v", err)
		return
	}
	log.Printf("DEBUG: catalog stats refreshed: %d offers, %d categories", stats.Offers, stats.Categories)
}

func (js *JobScheduler) auditIntegrity(ctx context.Context) {
	orphans, err := js.nodeRepo.CountOrphans(ctx)
	if err != nil {
		log.Printf("WARN: integrity audit failed: %v", err)
		return
	}
	if orphans > 0 {
		log.Printf("WARN: integrity audit found %d orphaned nodes", orphans)
	}
}
