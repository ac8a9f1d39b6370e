package cron

import (
	"context"
	"os"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/xiaomo-123/gemini-api-service/config"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/repository"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
	"github.com/xiaomo-123/gemini-api-service/services"
)

// CONSTANTS
const (
	// GroupGemini is the group for token and pool maintenance jobs
	GroupGemini = "gemini"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupGemini: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	jobIDs   map[string]cronv3.EntryID
	services *services.Services
	repos    *repository.Repositories
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, svcs *services.Services, repos *repository.Repositories) *CronManager {
	return &CronManager{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		services: svcs,
		repos:    repos,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "gemini-api-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	// Start leader election
	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx := context.Background()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	cronConfig := cm.cfg.CronConfig

	if cronConfig.HeartbeatSchedule != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.HeartbeatSchedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.HeartbeatSchedule)
	}

	if cronConfig.TokenRefreshSchedule != "" {
		id, err := c.AddFunc(cronConfig.TokenRefreshSchedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupGemini].Lock()
			defer jobLocks.locks[GroupGemini].Unlock()
			cm.refreshTokens()
		})
		if err != nil {
			cm.log.Fatalf("Could not add token refresh cron job: %v", err)
		}
		cm.jobIDs["token_refresh"] = id
		cm.log.Infof("Registered token refresh job with schedule: %s", cronConfig.TokenRefreshSchedule)
	}

	if cronConfig.PoolCleanSchedule != "" {
		id, err := c.AddFunc(cronConfig.PoolCleanSchedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupGemini].Lock()
			defer jobLocks.locks[GroupGemini].Unlock()
			cm.cleanPool()
		})
		if err != nil {
			cm.log.Fatalf("Could not add pool clean cron job: %v", err)
		}
		cm.jobIDs["pool_clean"] = id
		cm.log.Infof("Registered pool clean job with schedule: %s", cronConfig.PoolCleanSchedule)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) refreshTokens() {
	cm.log.Info("Running scheduled token refresh")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.refreshTokens")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	creds, err := cm.repos.MailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to load mail credentials: %v", err)
		return
	}
	loginEmail := creds.Email
	if creds.Parent != nil && creds.Parent.Email != "" {
		loginEmail = creds.Parent.Email
	}

	mailToken, err := cm.services.MailService.Login(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to log into mail provider: %v", err)
		return
	}

	result, err := cm.services.RefreshService.RefreshAll(ctx, loginEmail, mailToken)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled token refresh failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled token refresh completed: %d ok, %d failed", result.SuccessCount, result.FailureCount)
}

func (cm *CronManager) cleanPool() {
	cm.log.Info("Running scheduled pool cleanup")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.cleanPool")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	result, err := cm.services.PoolService.CleanInvalid(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled pool cleanup failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled pool cleanup completed: %d valid, %d invalid", result.ValidCount, result.InvalidCount)
}
