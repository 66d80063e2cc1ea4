// Command heat-controller drives a Tasmota heater from its own temperature
// telemetry over MQTT, leaving it alone for a while after a manual change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/heat-controller/internal/config"
	"github.com/sweeney/heat-controller/internal/control"
	"github.com/sweeney/heat-controller/internal/history"
	"github.com/sweeney/heat-controller/internal/logic"
	"github.com/sweeney/heat-controller/internal/mqtt"
	"github.com/sweeney/heat-controller/internal/status"
	"github.com/sweeney/heat-controller/internal/web"
)

func main() {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		cancel(signalError{s})
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// signalError is the cancellation cause when the process is asked to stop.
type signalError struct {
	sig os.Signal
}

func (e signalError) Error() string {
	return "received " + e.sig.String()
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)
	log := logrus.WithField("component", "main")

	store, err := history.NewStore(cfg.HistoryPath(), cfg.HistoryCapacity)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	ring, err := store.Load()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	log.WithFields(logrus.Fields{
		"path":    store.Path(),
		"entries": ring.Len(),
	}).Info("history loaded")

	// Status tracker first so the STARTUP event carries a snapshot.
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:           cfg.Broker,
		Device:           cfg.Device,
		HTTPAddr:         cfg.HTTP,
		Setpoint:         cfg.Setpoint,
		Hysteresis:       cfg.Hysteresis,
		ComfortWindows:   cfg.ComfortWindows,
		OverrideCooldown: cfg.Cooldown(),
		HistoryCapacity:  cfg.HistoryCapacity,
		HistoryFile:      store.Path(),
	})

	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		Decoder: mqtt.Decoder{
			Topics:   cfg.Topics(),
			Sensor:   cfg.Sensor,
			Location: cfg.Location(),
		},
		SystemTopic:        cfg.SystemTopicName(),
		ConnectTimeout:     cfg.Timeout(),
		OnConnectionChange: tracker.SetMQTTConnected,
		Logger:             logrus.WithField("component", "mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	ctrl := control.New(control.Options{
		Policy:    cfg.Policy(),
		Schedule:  logic.NewSchedule(cfg.Windows()),
		Cooldown:  cfg.Cooldown(),
		History:   ring,
		Store:     store,
		Commander: client,
		Status:    tracker,
		Logger:    logrus.WithField("component", "control"),
	})

	log.WithFields(logrus.Fields{
		"broker":     cfg.Broker,
		"device":     cfg.Device,
		"setpoint":   cfg.Setpoint,
		"hysteresis": cfg.Hysteresis,
		"comfort":    cfg.ComfortWindows,
		"cooldown":   cfg.Cooldown(),
	}).Info("started")

	return runLoop(ctx, ctrl, client.Events(), client, client, tracker)
}

// runLoop announces startup, runs the controller until ctx is cancelled and
// announces shutdown. Both announcements are best effort.
func runLoop(ctx context.Context, ctrl *control.Controller, events <-chan mqtt.Event, publisher mqtt.SystemPublisher, conn mqtt.ConnectionStatus, tracker *status.Tracker) error {
	log := logrus.WithField("component", "main")

	publishSystem(publisher, conn, tracker, "STARTUP", "")

	err := ctrl.Run(ctx, events)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err == nil {
		return errors.New("event stream closed")
	}

	reason := shutdownReason(context.Cause(ctx))
	log.WithField("reason", reason).Info("shutting down")
	publishSystem(publisher, conn, tracker, "SHUTDOWN", reason)
	return nil
}

func publishSystem(publisher mqtt.SystemPublisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string) {
	log := logrus.WithField("component", "main")

	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
	snap := tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(se); err != nil {
		log.WithError(err).Errorf("failed to publish %s event", event)
		return
	}
	log.Debugf("published %s event", event)
}

// shutdownReason names the signal that caused cancellation.
func shutdownReason(cause error) string {
	var se signalError
	if !errors.As(cause, &se) {
		return "UNKNOWN"
	}
	switch se.sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return se.sig.String()
}
