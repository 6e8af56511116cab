package main

import (
	"context"
	"fmt"
	"os"

	"civicportal/internal/app"
	"civicportal/internal/cli"
	"civicportal/internal/config"
	"civicportal/internal/log"
	"civicportal/internal/service"
)

func main() {
	root := cli.NewRootCommand(func(ctx context.Context) (*service.Services, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		logger := log.New(cfg.Environment, "portalctl")

		rt, err := app.Open(ctx, cfg, logger, "civic-portalctl")
		if err != nil {
			return nil, nil, err
		}
		return rt.Services, rt.Close, nil
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
