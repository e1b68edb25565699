package cron

import (
	"context"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/dmarcwatch/config"
	cron_config "github.com/customeros/dmarcwatch/internal/cron/config"
	"github.com/customeros/dmarcwatch/internal/enum"
	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/services/processor"
)

const (
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	jobIDs    map[string]cronv3.EntryID
	processor *processor.ProcessorService
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, processorService *processor.ProcessorService) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		processor: processorService,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "dmarcwatch-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

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

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
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

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleDmarcProcessing != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleDmarcProcessing, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.processDmarcReports()
		})
		if err != nil {
			cm.log.Fatalf("Could not add DMARC processing cron job: %v", err)
		}
		cm.jobIDs["dmarc_processing"] = id
		cm.log.Infof("Registered DMARC processing job with schedule: %s", cronConfig.CronScheduleDmarcProcessing)
	}
}

func (cm *CronManager) processDmarcReports() {
	cm.log.Info("Running scheduled DMARC report processing")

	ctx := context.Background()
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.processDmarcReports")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	result, err := cm.processor.ProcessReports(ctx, enum.JobTriggerScheduled)
	if err != nil {
		if dmarcwatch_errors.ErrRunInProgress == err {
			cm.log.Info("Skipping scheduled run: another run is in progress")
			return
		}
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled DMARC processing failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled run %s completed: %s", result.RunID, result.Message)
}
