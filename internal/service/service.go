// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/advisory"
	"github.com/agricure/agricure-locate/internal/api"
	"github.com/agricure/agricure-locate/internal/config"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/i18n"
	"github.com/agricure/agricure-locate/internal/locator/bus"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/metrics"
	"github.com/agricure/agricure-locate/internal/presenter"
	"github.com/agricure/agricure-locate/internal/store"
)

const (
	snapshotBuffer = 32
	pruneInterval  = time.Hour

	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerSignal   = "signal"
	TriggerResume   = "resume"
	TriggerMovement = "movement"
)

var ErrLoggerRequired = errors.New("logger is required")

type Service struct {
	SignalSrc signalSource

	config      *config.Config
	logger      *logger.Logger
	acquisition *acquisition.Acquisition
	capability  acquisition.Capability
	busCap      *bus.Capability
	geocoder    geocode.Geocoder
	advisor     *advisory.Advisor
	presenter   *presenter.Presenter
	metrics     *metrics.Metrics
	store       *store.Store
	scheduler   gocron.Scheduler
	apiServer   *api.Server

	outputLock sync.Mutex
	output     io.Writer

	positionLock sync.RWMutex
	address      geocode.Address
	advisory     *advisory.Advisory
	advisedAt    *acquisition.Position
}

func New(conf *config.Config, log *logger.Logger, localizer *spreak.Localizer) (*Service, error) {
	if log == nil {
		return nil, ErrLoggerRequired
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	pres, err := presenter.New(conf, localizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		SignalSrc: stdLibSignalSource{},
		config:    conf,
		logger:    log,
		metrics:   metrics.New(),
		output:    os.Stdout,
		presenter: pres,
		scheduler: scheduler,
	}

	if service.geocoder, err = service.selectGeocodeProvider(i18n.Tag(conf.Locale)); err != nil {
		return nil, fmt.Errorf("failed to create geocode provider: %w", err)
	}
	weatherProvider, err := service.selectWeatherProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create weather provider: %w", err)
	}
	if service.advisor, err = advisory.New(log, weatherProvider, conf.Units); err != nil {
		return nil, fmt.Errorf("failed to create advisor: %w", err)
	}
	if service.capability, err = service.selectCapability(); err != nil {
		return nil, fmt.Errorf("failed to create location capability: %w", err)
	}

	opts := []acquisition.Option{acquisition.WithStaleHandler(service.handleStale)}
	if conf.Acquisition.StaleGuard {
		opts = append(opts, acquisition.WithStaleGuard())
	}
	service.acquisition = acquisition.New(service.capability, opts...)

	if conf.Store.Path != "" {
		if service.store, err = store.Open(conf.Store.Path); err != nil {
			return nil, fmt.Errorf("failed to open resolution store: %w", err)
		}
	}
	if !conf.API.Disable {
		var history api.History
		if service.store != nil {
			history = service.store
		}
		service.apiServer = api.New(log, conf.API.Listen, service, history, service.metrics.Handler())
	}

	return service, nil
}

// Run starts all background work, issues the first position request and blocks until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting position acquisition", slog.String("capability", s.acquisition.CapabilityName()),
		slog.Bool("stale_guard", s.config.Acquisition.StaleGuard))

	sub, unsub := s.acquisition.Subscribe(snapshotBuffer)
	defer unsub()
	snapshotsDone := make(chan struct{})
	go func() {
		defer close(snapshotsDone)
		s.processSnapshots(ctx, sub)
	}()

	if err := s.createScheduledJob(ctx, s.config.Intervals.Request, s.scheduledRequest,
		"position_request_job"); err != nil {
		return err
	}
	if err := s.createScheduledJob(ctx, s.config.Intervals.Advisory, s.refreshAdvisory,
		"advisory_refresh_job"); err != nil {
		return err
	}
	if s.store != nil && s.config.Store.Retention > 0 {
		if err := s.createScheduledJob(ctx, pruneInterval, s.pruneHistory, "history_prune_job"); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	if s.busCap != nil {
		go s.busCap.Run(ctx)
		go s.followMovement(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.SignalSrc.Stop(sigChan)
	go s.HandleSignals(ctx, sigChan)
	go s.monitorSleepResume(ctx)

	if s.apiServer != nil {
		go func() {
			if err := s.apiServer.Run(ctx); err != nil {
				s.logger.Error("API server stopped", logger.Err(err))
			}
		}()
	}

	s.printStatus(ctx)
	s.Request(ctx, TriggerStartup)

	<-ctx.Done()
	var err error
	if shutdownErr := s.scheduler.Shutdown(); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shut down scheduler: %w", shutdownErr))
	}
	// The store must outlive the last Record call.
	<-snapshotsDone
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	return err
}

// State returns the current acquisition snapshot.
func (s *Service) State() acquisition.State {
	return s.acquisition.State()
}

// Request triggers a position request. trigger names the cause for logs and metrics.
func (s *Service) Request(ctx context.Context, trigger string) {
	s.metrics.ObserveRequest(trigger)
	s.logger.Debug("requesting position", slog.String("trigger", trigger))
	s.acquisition.RequestPosition(ctx)
}

func (s *Service) Subscribe(buffer int) (<-chan acquisition.State, func()) {
	return s.acquisition.Subscribe(buffer)
}

// Advisory returns the last advisory and the address of the position it was built for.
func (s *Service) Advisory() (*advisory.Advisory, geocode.Address) {
	s.positionLock.RLock()
	defer s.positionLock.RUnlock()
	return s.advisory, s.address
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

func (s *Service) scheduledRequest(ctx context.Context) {
	s.Request(ctx, TriggerSchedule)
}

func (s *Service) handleStale(request uint64) {
	s.metrics.ObserveStale(request)
	s.logger.Debug("discarded callback of a superseded request", slog.Uint64("request", request))
}

func (s *Service) pruneHistory(ctx context.Context) {
	deleted, err := s.store.Prune(ctx, time.Now().Add(-s.config.Store.Retention))
	if err != nil {
		s.logger.Error("failed to prune resolution history", logger.Err(err))
		return
	}
	if deleted > 0 {
		s.logger.Debug("pruned resolution history", slog.Int64("deleted", deleted))
	}
}
