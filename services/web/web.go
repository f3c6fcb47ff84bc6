package web

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	webHostFlag = "host"
	webPortFlag = "port"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   webHostFlag,
			Usage:  "listening host",
			Value:  "",
			EnvVar: "WEB_HOST",
		},
		cli.IntFlag{
			Name:   webPortFlag,
			Usage:  "http listening port",
			Value:  4000,
			EnvVar: "PORT",
		},
	)
}

type Web struct {
	host string
	port int
	ln   net.Listener
	r    *gin.Engine
}

func New(c *cli.Context, r *gin.Engine) *Web {
	return &Web{
		host: c.String(webHostFlag),
		port: c.Int(webPortFlag),
		r:    r,
	}
}

func (s *Web) Serve() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to web listen to tcp connection")
	}
	s.ln = ln
	log.Infof("serving Web at %v", addr)
	err = http.Serve(ln, s.r)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Web) Close() {
	log.Info("closing Web")
	if s.ln != nil {
		_ = s.ln.Close()
	}
}
