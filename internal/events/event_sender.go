package events

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"

	"github.com/flagforge/go-events-pipeline/internal/eventlog"
)

const (
	defaultEventsURI   = "https://events.example.com"
	eventSchemaHeader  = "X-Events-Schema"
	payloadIDHeader    = "X-Events-Payload-ID"
	currentEventSchema = "1"
	defaultRetryDelay  = time.Second
)

// EventSenderConfiguration holds parameters for delivery that don't vary
// per payload.
type EventSenderConfiguration struct {
	Client      *http.Client
	BaseURI     string
	AuthHeader  string
	BaseHeaders func() http.Header
	Loggers     eventlog.Loggers
	RetryDelay  time.Duration
}

type defaultEventSender struct {
	config EventSenderConfiguration
}

// NewHTTPEventSender builds the standard EventSender: POSTs serialized
// payloads with a retry-once policy, classifying failures per
// isHTTPErrorRecoverable.
func NewHTTPEventSender(config EventSenderConfiguration) EventSender {
	return &defaultEventSender{config: config}
}

func (s *defaultEventSender) SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	return sendEventDataWithRetry(s.config, kind, data, eventCount)
}

func (s *defaultEventSender) Close() {}

func sendEventDataWithRetry(config EventSenderConfiguration, kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	headers := make(http.Header)
	if config.BaseHeaders != nil {
		for k, vv := range config.BaseHeaders() {
			headers[k] = vv
		}
	}
	if config.AuthHeader != "" {
		headers.Set("Authorization", config.AuthHeader)
	}
	headers.Set("Content-Type", "application/json")

	var path, description string
	switch kind {
	case AnalyticsEventDataKind:
		path = "/bulk"
		description = fmt.Sprintf("%d events", eventCount)
		headers.Add(eventSchemaHeader, currentEventSchema)
		payloadUUID, _ := uuid.NewRandom()
		headers.Add(payloadIDHeader, payloadUUID.String())
	case DiagnosticEventDataKind:
		path = "/diagnostic"
		description = "diagnostic event"
	default:
		return EventSenderResult{}
	}

	baseURI := strings.TrimRight(config.BaseURI, "/")
	if baseURI == "" {
		baseURI = defaultEventsURI
	}
	uri := baseURI + path

	config.Loggers.Debugf("sending %s: %s", description, data)

	var resp *http.Response
	var respErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			delay := config.RetryDelay
			if delay == 0 {
				delay = defaultRetryDelay
			}
			config.Loggers.Warnf("retrying delivery after %s", delay)
			time.Sleep(delay)
		}

		req, reqErr := http.NewRequest(http.MethodPost, uri, bytes.NewReader(data))
		if reqErr != nil {
			config.Loggers.Errorf("could not build delivery request: %+v", reqErr)
			return EventSenderResult{}
		}
		req.Header = headers

		client := config.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, respErr = client.Do(req)

		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if respErr != nil {
			config.Loggers.Warnf("error sending events: %+v", respErr)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result := EventSenderResult{Success: true}
			if t, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
				result.TimeFromServer = ldtime.UnixMillisFromTime(t)
			}
			return result
		}
		if isHTTPErrorRecoverable(resp.StatusCode) {
			retryMsg := "will retry"
			if attempt == 1 {
				retryMsg = "events were dropped"
			}
			config.Loggers.Warnf(httpErrorMessage(resp.StatusCode, "sending events", retryMsg))
			continue
		}
		config.Loggers.Warnf(httpErrorMessage(resp.StatusCode, "sending events", ""))
		return EventSenderResult{MustShutDown: true}
	}
	return EventSenderResult{}
}
