// Package service wires configuration, logging, balancer and controller
// into a runnable process.
package service

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/onestraw/hrwlb/balancer"
	"github.com/onestraw/hrwlb/config"
	"github.com/onestraw/hrwlb/controller"
)

const LOG_FORMAT_JSON = "json"

type Service struct {
	controller *controller.Controller
	balancer   *balancer.Balancer
}

// SetupLogging applies the log section of the configuration.
func SetupLogging(c *config.Log) error {
	if c.Level != "" {
		level, err := log.ParseLevel(c.Level)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}
	if c.Format == LOG_FORMAT_JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func New(configFile string) (*Service, error) {
	c, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(c)
}

// NewFromConfig returns a Service built from a loaded configuration.
func NewFromConfig(c *config.Configuration) (*Service, error) {
	if err := SetupLogging(&c.Log); err != nil {
		return nil, err
	}

	b, err := balancer.New(c.VServers)
	if err != nil {
		return nil, err
	}

	var ctl *controller.Controller
	if c.Controller.Address != "" {
		ctl = controller.New(&c.Controller)
	} else {
		log.Warnf("controller address is not specified, controller disabled")
	}

	return &Service{
		controller: ctl,
		balancer:   b,
	}, nil
}

// Start starts the controller and every virtual server.
func (s *Service) Start() error {
	if s.controller != nil {
		if err := s.controller.Run(s.balancer); err != nil {
			return err
		}
	}
	return s.balancer.Run()
}

// Shutdown stops the controller and every running virtual server.
func (s *Service) Shutdown() error {
	if s.controller != nil {
		if err := s.controller.Stop(); err != nil {
			log.Errorf("Stop controller err=%v", err)
		}
	}
	return s.balancer.Stop()
}

// Run starts the service and blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	log.Infof("Starting...")
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigC)

	if err := s.Start(); err != nil {
		s.Shutdown()
		return err
	}

	sig := <-sigC
	log.Infof("Caught signal %v, exiting...", sig)

	return s.Shutdown()
}
