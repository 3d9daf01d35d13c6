// Command eventsdemo wires a Processor against a YAML config file and an
// HTTP EventSender, for manual exercising of the pipeline outside of a
// host SDK.
package main

import (
	"os"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/flagforge/go-events-pipeline/internal/eventlog"
	"github.com/flagforge/go-events-pipeline/internal/events"
	"github.com/flagforge/go-events-pipeline/internal/events/configfile"
)

const (
	configPathEnvVar    = "EVENTS_CONFIG_YAML"
	defaultConfigPath   = "events.yaml"
	eventsKeyEnvVar     = "EVENTS_INGEST_KEY"
	logFilePathEnvVar   = "EVENTS_LOG_FILE"
	defaultEventLogFile = "events.log"
)

func main() {
	zapLogger, err := eventlog.NewZapBaseLogger(envOrDefault(logFilePathEnvVar, defaultEventLogFile))
	if err != nil {
		panic(err)
	}
	loggers := eventlog.LoggersWithZap(zapLogger)

	config := events.EventsConfiguration{
		Capacity:            events.DefaultCapacity,
		FlushInterval:       events.DefaultFlushInterval,
		ContextDeduplicator: events.NewLRUContextDeduplicator(events.DefaultContextKeysCapacity, events.DefaultContextKeysFlushInterval),
		Loggers:             loggers,
	}

	configPath := envOrDefault(configPathEnvVar, defaultConfigPath)
	if fc, err := configfile.Load(configPath); err != nil {
		loggers.Warnf("could not load %s, using defaults: %+v", configPath, err)
	} else {
		fc.ApplyTo(&config)
	}

	config.EventSender = events.NewHTTPEventSender(events.EventSenderConfiguration{
		BaseURI:    config.EventsURI,
		AuthHeader: os.Getenv(eventsKeyEnvVar),
		Loggers:    loggers,
	})

	processor := events.NewProcessor(config, events.NewRealScheduler())
	defer processor.Close()

	ctx := ldcontext.NewBuilder("demo-user").Kind("user").Build()
	processor.SendFeatureRequestEvent(events.FeatureRequestEvent{
		BaseEvent: events.BaseEvent{
			CreationDate: ldtime.UnixMillisNow(),
			Context:      events.NewEventInputContext(ctx),
		},
		Key:         "demo-flag",
		Version:     ldvalue.NewOptionalInt(3),
		Variation:   ldvalue.NewOptionalInt(0),
		Value:       ldvalue.Bool(true),
		Default:     ldvalue.Bool(false),
		TrackEvents: true,
	})

	processor.FlushBlocking(5 * time.Second)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
