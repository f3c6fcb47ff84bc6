package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	maintenanceScheduleFlag = "maintenance-schedule"
	jobTimeout              = 10 * time.Minute
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   maintenanceScheduleFlag,
			Usage:  "cron schedule of maintenance jobs",
			Value:  "@hourly",
			EnvVar: "MAINTENANCE_SCHEDULE",
		},
	)
}

type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on a cron schedule until closed.
type Scheduler struct {
	spec  string
	jobs  []Job
	cron  *cron.Cron
	done  chan struct{}
	close sync.Once
}

func New(c *cli.Context, jobs ...Job) *Scheduler {
	return NewScheduler(c.String(maintenanceScheduleFlag), jobs...)
}

func NewScheduler(spec string, jobs ...Job) *Scheduler {
	return &Scheduler{
		spec: spec,
		jobs: jobs,
		cron: cron.New(),
		done: make(chan struct{}),
	}
}

// RunAll runs every job once in order. A failed job does not stop the next ones.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var last error
	for _, j := range s.jobs {
		if err := s.run(ctx, j); err != nil {
			last = err
		}
	}
	return last
}

func (s *Scheduler) run(ctx context.Context, j Job) error {
	l := log.WithField("job", j.Name)
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	if err := j.Run(ctx); err != nil {
		l.WithError(err).Error("maintenance job failed")
		return errors.Wrapf(err, "job %v failed", j.Name)
	}
	l.WithField("duration", time.Since(start)).Info("maintenance job done")
	return nil
}

func (s *Scheduler) Serve() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		_ = s.RunAll(context.Background())
	})
	if err != nil {
		return errors.Wrapf(err, "failed to schedule maintenance with %v", s.spec)
	}
	log.WithField("schedule", s.spec).Info("serving maintenance scheduler")
	s.cron.Start()
	<-s.done
	return nil
}

func (s *Scheduler) Close() {
	s.close.Do(func() {
		log.Info("closing maintenance scheduler")
		<-s.cron.Stop().Done()
		close(s.done)
	})
}
