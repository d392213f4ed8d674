package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flemzord/relaybot/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts app.RunContext to the service manager's Start/Stop calls.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan error, 1)
	done := p.done
	p.mu.Unlock()

	go func() {
		err := app.RunContext(ctx, p.params)
		done <- err
		if err != nil && ctx.Err() == nil {
			// Exit non-zero so the service manager restarts us.
			if logger, lerr := s.Logger(nil); lerr == nil {
				_ = logger.Error(err)
			}
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

func newService(cfgPath, mode, envFile string) (service.Service, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	args := []string{"service", "run"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if mode != "" {
		args = append(args, "--mode", mode)
	}
	if envFile != "" {
		abs, err := filepath.Abs(envFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--env-file", abs)
	}

	return service.New(&program{
		params: app.RunParams{ConfigPath: cfgPath, Mode: mode, Version: version},
	}, &service.Config{
		Name:             "relaybot",
		DisplayName:      "relaybot",
		Description:      "Telegram and HTTP front-end for a knowledge-grounded agent",
		Arguments:        args,
		WorkingDirectory: wd,
	})
}

func serviceCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage relaybot as a system service",
	}
	cmd.PersistentFlags().StringVarP(&mode, "mode", "m", "", "Run mode baked into the service definition")

	svc := func(cmd *cobra.Command) (service.Service, error) {
		cfgPath, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")
		return newService(cfgPath, mode, envFile)
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the relaybot service", capitalize(action)),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := svc(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := svc(cmd)
			if err != nil {
				return err
			}
			status, err := s.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusString(status))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := svc(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func statusString(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
