package main

// Dispatcher binary: queues --jobs jobs spread over --groups groups, dispatches
// them to the configured engine and resubmits the ones the restart service
// approves. With the fake engine this runs the whole pipeline in process.
//	Flags: (see "-h" for all options)
//		--config [named configuration like local.memory, or JSON text]
//		--log_level [<error|info|debug> level and above should be logged]
//		--jobs, --groups, --max_retries [the generated workload]
//		--stats_interval [how often to log the rendered stats, 0 to disable]
//		--duration [stop after this long, 0 to run until interrupted]

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/enginedispatch/common/errors"
	"github.com/twitter/enginedispatch/common/log/hooks"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/config"
	"github.com/twitter/enginedispatch/dispatcher"
	"github.com/twitter/enginedispatch/domain"
	"github.com/twitter/enginedispatch/engine"
)

type options struct {
	config        string
	logLevel      string
	jobs          int
	groups        int
	maxRetries    int
	statsInterval time.Duration
	duration      time.Duration
}

func main() {
	log.AddHook(hooks.NewContextHook())

	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(int(errors.ExitCodeOf(err)))
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "dispatcher",
		Short:         "dispatcher runs the group queue dispatch loop against an execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.config, "config", "local.memory", "Dispatcher config (either a name like local.memory or JSON text)")
	flags.StringVar(&opts.logLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")
	flags.IntVar(&opts.jobs, "jobs", 100, "number of jobs to submit")
	flags.IntVar(&opts.groups, "groups", 3, "number of groups the jobs are spread over")
	flags.IntVar(&opts.maxRetries, "max_retries", 3, "retry budget of every job")
	flags.DurationVar(&opts.statsInterval, "stats_interval", 5*time.Second, "how often to log stats, 0 to disable")
	flags.DurationVar(&opts.duration, "duration", 0, "stop after this long, 0 to run until interrupted")
	return cmd
}

func run(opts *options) error {
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return errors.NewError(err, errors.LogLevelFailureExitCode)
	}
	log.SetLevel(level)

	cfg, err := config.GetConfig(opts.config)
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	log.Info(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if opts.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigs:
			log.Infof("received %s, shutting down", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	stat := stats.DefaultStatsReceiver()
	queues, err := cfg.Queue.CreateQueue(stat)
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	dc, err := cfg.Dispatcher.CreateDispatcherConfig()
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	cache, err := cfg.FailureCache.CreateCache(stat)
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	evaluator, err := cfg.Restart.CreateService(cache, stat)
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	fc, err := cfg.Restart.CreateFailureConfig(dc.NodeAddress)
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	client, failures, err := cfg.Engine.CreateEngine()
	if err != nil {
		return errors.NewError(err, errors.ConfigFailureExitCode)
	}
	store, err := cfg.JobStore.CreateStore(ctx)
	if err != nil {
		return errors.NewError(err, errors.StoreInitFailureExitCode)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	d := dispatcher.New(queues, client, store, dc, stat)
	handler := dispatcher.NewFailureHandler(queues, evaluator, client, store, fc, stat)

	if cfg.Dispatcher.RecoverOnStartup {
		if _, err := d.Recover(ctx); err != nil {
			return errors.NewError(err, errors.StoreInitFailureExitCode)
		}
	}
	if err := submitWorkload(ctx, d, opts); err != nil {
		return errors.NewError(err, errors.StoreInitFailureExitCode)
	}

	if poller, ok := client.(engine.FailurePoller); ok {
		go poller.Run(ctx)
	}

	var wg sync.WaitGroup
	if failures != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleFailures(ctx, handler, failures, &wg)
		}()
	}
	if opts.statsInterval > 0 {
		go logStats(ctx, stat, opts.statsInterval)
	}

	err = d.Run(ctx)
	wg.Wait()
	log.Infof("final stats: %s", stat.Render(false))
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return errors.NewError(err, errors.DispatcherFailureExitCode)
	}
	return nil
}

func submitWorkload(ctx context.Context, d *dispatcher.Dispatcher, opts *options) error {
	groups := opts.groups
	if groups <= 0 {
		groups = 1
	}
	for i := 0; i < opts.jobs; i++ {
		job := domain.NewJob(fmt.Sprintf("group-%d", i%groups), rand.Intn(10))
		job.MaxRetryNum = opts.maxRetries
		job.MemoryMB = 1024
		job.EngineType = "flink"
		if err := d.Submit(ctx, job); err != nil {
			return err
		}
	}
	log.Infof("submitted %d jobs over %d groups", opts.jobs, groups)
	return nil
}

// handleFailures evaluates each failed job in its own goroutine since resubmission waits out a backoff.
func handleFailures(ctx context.Context, handler *dispatcher.FailureHandler, failures <-chan *domain.Job, wg *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-failures:
			wg.Add(1)
			go func() {
				defer wg.Done()
				handler.HandleFailure(ctx, job)
			}()
		}
	}
}

func logStats(ctx context.Context, stat stats.StatsReceiver, interval time.Duration) {
	ticker := stats.Time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			log.Infof("stats: %s", stat.Render(false))
		}
	}
}
