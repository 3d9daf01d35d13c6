// Package configfile loads an EventsConfiguration's behavioral fields
// (capacity, intervals, redaction flags, endpoints) from YAML, for hosts
// that want file-based configuration instead of wiring the struct fields
// by hand in code.
package configfile

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"

	"github.com/flagforge/go-events-pipeline/internal/events"
)

// FileConfig mirrors the subset of EventsConfiguration that makes sense
// to express in a config file; intervals are given in whole seconds
// rather than raw durations.
type FileConfig struct {
	Capacity                       int      `yaml:"capacity"`
	FlushIntervalSeconds           int      `yaml:"flushIntervalSeconds"`
	DiagnosticRecordingIntervalSec int      `yaml:"diagnosticRecordingIntervalSeconds"`
	AllAttributesPrivate           bool     `yaml:"allAttributesPrivate"`
	PrivateAttributes              []string `yaml:"privateAttributes"`
	InlineUsers                    bool     `yaml:"inlineUsers"`
	EventsURI                      string   `yaml:"eventsUri"`
	DiagnosticURI                  string   `yaml:"diagnosticUri"`
}

// Load reads a YAML file at path and returns the parsed FileConfig.
func Load(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// ApplyTo copies the file-sourced fields onto an existing
// EventsConfiguration, leaving collaborators (EventSender,
// ContextDeduplicator, DiagnosticsManager, Loggers) untouched, since those
// are Go values a file cannot express.
func (fc *FileConfig) ApplyTo(config *events.EventsConfiguration) {
	if fc.Capacity > 0 {
		config.Capacity = fc.Capacity
	}
	if fc.FlushIntervalSeconds > 0 {
		config.FlushInterval = time.Duration(fc.FlushIntervalSeconds) * time.Second
	}
	if fc.DiagnosticRecordingIntervalSec > 0 {
		config.DiagnosticRecordingInterval = time.Duration(fc.DiagnosticRecordingIntervalSec) * time.Second
	}
	config.AllAttributesPrivate = fc.AllAttributesPrivate
	config.InlineUsers = fc.InlineUsers
	config.EventsURI = fc.EventsURI
	config.DiagnosticURI = fc.DiagnosticURI

	if len(fc.PrivateAttributes) > 0 {
		refs := make([]ldattr.Ref, 0, len(fc.PrivateAttributes))
		for _, a := range fc.PrivateAttributes {
			refs = append(refs, ldattr.NewRef(a))
		}
		config.PrivateAttributes = refs
	}
}
