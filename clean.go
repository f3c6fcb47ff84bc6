package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/scheduler"
	"github.com/webtor-io/stremio-resolver/services/torrentinfo"
)

func makeCleanCMD() cli.Command {
	cleanCMD := cli.Command{
		Name:    "clean",
		Aliases: []string{"c"},
		Usage:   "Sweeps expired torrent files and cache entries",
		Action:  clean,
	}
	configureClean(&cleanCMD)
	return cleanCMD
}

func configureClean(c *cli.Command) {
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = cache.RegisterFlags(c.Flags)
}

func maintenanceJobs(st *torrentinfo.Store, ch cache.Store) []scheduler.Job {
	return []scheduler.Job{
		{
			Name: "sweep torrent store",
			Run: func(_ context.Context) error {
				n, err := st.Sweep(torrentinfo.StoreHorizon)
				if err != nil {
					return err
				}
				log.WithField("removed", n).Info("torrent store swept")
				return nil
			},
		},
		{
			Name: "purge cache",
			Run: func(ctx context.Context) error {
				n, err := ch.Purge(ctx)
				if err != nil {
					return err
				}
				log.WithField("removed", n).Info("cache purged")
				return nil
			},
		},
	}
}

func clean(c *cli.Context) error {
	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting Cache
	ch, err := cache.New(c, redis)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	// Setting Store
	st, err := torrentinfo.NewStore(afero.NewOsFs(), torrentinfo.StoreDir(c))
	if err != nil {
		return err
	}

	return scheduler.NewScheduler("", maintenanceJobs(st, ch)...).RunAll(context.Background())
}
