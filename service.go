package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HydroGest/lmarena/core"

	"github.com/kardianos/service"
)

const serviceStopTimeout = 30 * time.Second

// Program runs the bot under a system service manager (Windows SCM,
// systemd, launchd).
type Program struct {
	envPath string

	ctx    context.Context
	cancel context.CancelFunc
	exit   chan struct{}
	code   int
}

// Start is called by the service manager and must not block.
func (p *Program) Start(s service.Service) error {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.exit = make(chan struct{})
	go p.run()
	return nil
}

// Stop asks the bot to shut down and waits for it.
func (p *Program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.exit:
		return nil
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("timeout waiting for service to stop")
	}
}

func (p *Program) run() {
	defer close(p.exit)
	p.code = runBot(p.ctx, p.envPath)
}

// ServiceConfig describes the installed service. The service runs
// "<binary> --env-file <abs path> service run" from the current directory.
func ServiceConfig(envPath string) (*service.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if envPath != "" && !filepath.IsAbs(envPath) {
		envPath = filepath.Join(wd, envPath)
	}
	return &service.Config{
		Name:             "lmarena-bot",
		DisplayName:      "LMArena Image Bot",
		Description:      "Chat bot that stylizes images through LMArenaBridge",
		Arguments:        []string{"--env-file", envPath, "service", "run"},
		WorkingDirectory: wd,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}, nil
}

// ServiceCmd is "service <action>".
type ServiceCmd struct {
	Args struct {
		Action string `positional-arg-name:"action" description:"install, uninstall, start, stop, restart, status or run"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ServiceCmd) Execute(_ []string) error {
	prg := &Program{envPath: options.EnvFile}
	svcConfig, err := ServiceConfig(options.EnvFile)
	if err != nil {
		return err
	}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	action := c.Args.Action
	if action == "remove" {
		action = "uninstall"
	}

	switch action {
	case "run":
		if err := s.Run(); err != nil {
			return fmt.Errorf("service run failed: %w", err)
		}
		if prg.code != core.ExitCodeSuccess {
			return &exitError{code: prg.code}
		}
		return nil
	case "status":
		status, err := s.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}
		fmt.Println(statusText(status))
		return nil
	case "install", "uninstall", "start", "stop", "restart":
		if err := service.Control(s, action); err != nil {
			return fmt.Errorf("failed to %s service: %w", action, err)
		}
		fmt.Printf("Service %s: ok\n", action)
		return nil
	default:
		return fmt.Errorf("unknown service action %q", action)
	}
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Service is running"
	case service.StatusStopped:
		return "Service is stopped"
	default:
		return "Service status unknown"
	}
}
