package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dse-portal/noticeboard/auth"
	"github.com/dse-portal/noticeboard/env"
	"github.com/dse-portal/noticeboard/portaltest"
)

// DevServer runs the in-memory reference portal locally so front-end work
// and SDK experiments do not need the production deployment
type DevServer struct {
	portal *portaltest.Server
	logger zerolog.Logger
}

// NewDevServer initializes the struct and loads the retention window
// from the environment
func NewDevServer(logger zerolog.Logger) (*DevServer, error) {
	archiveDays, err := env.GetIntEnv("archive retention window in days", "ARCHIVE_DAYS")
	if err != nil {
		return nil, err
	}

	portal := portaltest.NewServer(archiveDays, logger)

	// Log a ready-to-use admin token so local mutations are easy to script
	adminToken, err := portal.IssueToken("dev-admin", auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("token", adminToken).Msg("issued local admin token")

	return &DevServer{
		portal: portal,
		logger: logger,
	}, nil
}

// Serve runs the dev server until it's cancelled for some reason,
// in which case it attempts to gracefully shutdown.
// This function blocks.
func (d *DevServer) Serve(ctx context.Context, port int) {
	router := d.portal.Router()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Fatal().Err(err).Msg("listen failed")
		}
	}()
	d.logger.Info().Int("port", port).Msg("dev server started")

	<-ctx.Done()
	d.logger.Info().Msg("dev server stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err := server.Shutdown(ctx); err != nil {
		d.logger.Fatal().Err(err).Msg("dev server shutdown failed")
	}
	d.logger.Info().Msg("dev server exited properly")
}
