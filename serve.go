package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/stremio-resolver/handlers/stremio"
	"github.com/webtor-io/stremio-resolver/services/cache"
	"github.com/webtor-io/stremio-resolver/services/common"
	"github.com/webtor-io/stremio-resolver/services/debrid/providers"
	"github.com/webtor-io/stremio-resolver/services/jackett"
	"github.com/webtor-io/stremio-resolver/services/meta"
	"github.com/webtor-io/stremio-resolver/services/resolver"
	"github.com/webtor-io/stremio-resolver/services/scheduler"
	"github.com/webtor-io/stremio-resolver/services/torrentinfo"
	w "github.com/webtor-io/stremio-resolver/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves stremio addon",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterPprofFlags(c.Flags)
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = cache.RegisterFlags(c.Flags)
	c.Flags = meta.RegisterFlags(c.Flags)
	c.Flags = jackett.RegisterFlags(c.Flags)
	c.Flags = providers.RegisterFlags(c.Flags)
	c.Flags = resolver.RegisterFlags(c.Flags)
	c.Flags = scheduler.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	var servers []cs.Servable
	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Pprof
	pprof := cs.NewPprof(c)
	if pprof != nil {
		servers = append(servers, pprof)
		defer pprof.Close()
	}

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

	// Setting Meta
	mr, err := meta.New(c, cl, ch)
	if err != nil {
		return err
	}

	// Setting Jackett
	jc := jackett.New(c, cl, ch)

	// Setting TorrentInfo
	ir, st, err := torrentinfo.New(c, cl, ch)
	if err != nil {
		return err
	}

	// Setting Debrid
	reg := providers.NewRegistry(providers.NewConfig(c), cl)

	// Setting Resolver
	cfg, err := resolver.NewConfig(c)
	if err != nil {
		return err
	}
	sg := resolver.NewSigner(c.String(common.SessionSecretFlag))
	rs := resolver.New(cfg, jc, ir, mr, reg, ch, sg)
	defer rs.Wait()

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false

	// Setting Stremio
	stremio.RegisterHandler(r, rs, sg, reg, c.String(common.DomainFlag))

	// Setting Web
	web := w.New(c, r)
	servers = append(servers, web)
	defer web.Close()

	// Setting Scheduler
	sch := scheduler.New(c, maintenanceJobs(st, ch)...)
	servers = append(servers, sch)
	defer sch.Close()

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
