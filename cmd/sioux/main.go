package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"sioux/internal/app"
	"sioux/internal/config"
)

func main() {
	var (
		cfgPath    string
		showTokens bool
	)
	flag.StringVar(&cfgPath, "config", "./sioux.yaml", "path to config (yaml or json)")
	flag.BoolVar(&showTokens, "tokens", false, "print the format tokens and styles, then exit")
	flag.Parse()

	created, err := config.EnsureFile(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if created {
		fmt.Fprintln(os.Stderr, "wrote default config to", cfgPath)
	}

	a, err := app.New(cfgPath)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, verr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if showTokens {
		fmt.Print(a.TokenReference())
		_ = a.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	reason := app.StopAppStop
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", a.Err())
		os.Exit(1)
	}
}
