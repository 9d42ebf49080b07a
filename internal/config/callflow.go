package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CallFlow is the caller-facing behaviour of the call center: what inbound callers
// hear, which digit leads to which queue, and the music played while waiting.
type CallFlow struct {
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`

	// InboundMode decides the first step for inbound calls: ivr, queue or agent.
	InboundMode  string `yaml:"inbound_mode"`
	DefaultQueue string `yaml:"default_queue"`

	IVR    IVRConfig     `yaml:"ivr"`
	Queues []QueueConfig `yaml:"queues"`
	Music  MusicConfig   `yaml:"music"`
}

type IVRConfig struct {
	Prompt    string `yaml:"prompt"`
	Timeout   int    `yaml:"timeout"`
	NumDigits int    `yaml:"num_digits"`

	// Menu maps a pressed digit to a queue name.
	Menu map[string]string `yaml:"menu"`
}

type QueueConfig struct {
	Name string `yaml:"name"`
	// Skills an agent needs to take calls from this queue directly.
	Skills []string `yaml:"skills"`
}

type MusicConfig struct {
	Hold string `yaml:"hold"`
	Wait string `yaml:"wait"`
}

const (
	InboundModeIVR   = "ivr"
	InboundModeQueue = "queue"
	InboundModeAgent = "agent"
)

// DefaultCallFlow is used when no CALLFLOW_FILE is configured.
func DefaultCallFlow() CallFlow {
	return CallFlow{
		Voice:        "alice",
		Language:     "en-US",
		InboundMode:  InboundModeIVR,
		DefaultQueue: "support",
		IVR: IVRConfig{
			Prompt:    "Welcome to our call center. Press 1 for sales, 2 for support, or 3 for billing.",
			Timeout:   3,
			NumDigits: 1,
			Menu:      map[string]string{"1": "sales", "2": "support", "3": "billing"},
		},
		Queues: []QueueConfig{
			{Name: "sales", Skills: []string{"sales"}},
			{Name: "support", Skills: []string{"support"}},
			{Name: "billing", Skills: []string{"billing"}},
		},
		Music: MusicConfig{
			Hold: "http://com.twilio.music.classical.s3.amazonaws.com/BusyStrings.mp3",
			Wait: "http://com.twilio.music.classical.s3.amazonaws.com/ith_chopin-15-2.mp3",
		},
	}
}

// LoadCallFlow reads a call-flow file. Values missing from the file keep their
// defaults; queues and the IVR menu are replaced as a whole when present.
// An empty path returns the defaults.
func LoadCallFlow(path string) (CallFlow, error) {
	if path == "" {
		return DefaultCallFlow(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CallFlow{}, fmt.Errorf("reading call flow: %w", err)
	}
	var cf CallFlow
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return CallFlow{}, fmt.Errorf("parsing call flow: %w", err)
	}
	cf = cf.withDefaults()
	if err := cf.Validate(); err != nil {
		return CallFlow{}, err
	}
	return cf, nil
}

func (cf CallFlow) withDefaults() CallFlow {
	d := DefaultCallFlow()
	if cf.Voice == "" {
		cf.Voice = d.Voice
	}
	if cf.Language == "" {
		cf.Language = d.Language
	}
	if cf.InboundMode == "" {
		cf.InboundMode = d.InboundMode
	}
	if len(cf.Queues) == 0 {
		cf.Queues = d.Queues
	}
	if cf.DefaultQueue == "" {
		cf.DefaultQueue = cf.Queues[0].Name
	}
	if cf.IVR.Prompt == "" {
		cf.IVR.Prompt = d.IVR.Prompt
	}
	if cf.IVR.Timeout == 0 {
		cf.IVR.Timeout = d.IVR.Timeout
	}
	if cf.IVR.NumDigits == 0 {
		cf.IVR.NumDigits = d.IVR.NumDigits
	}
	if len(cf.IVR.Menu) == 0 {
		cf.IVR.Menu = d.IVR.Menu
	}
	if cf.Music.Hold == "" {
		cf.Music.Hold = d.Music.Hold
	}
	if cf.Music.Wait == "" {
		cf.Music.Wait = d.Music.Wait
	}
	return cf
}

func (cf CallFlow) Validate() error {
	var errs []error

	switch cf.InboundMode {
	case InboundModeIVR, InboundModeQueue, InboundModeAgent:
	default:
		errs = append(errs, fmt.Errorf("inbound_mode must be one of ivr, queue, agent, got %q", cf.InboundMode))
	}
	if len(cf.Queues) == 0 {
		errs = append(errs, errors.New("at least one queue is required"))
	}
	if !cf.HasQueue(cf.DefaultQueue) {
		errs = append(errs, fmt.Errorf("default_queue %q is not a configured queue", cf.DefaultQueue))
	}
	for _, digit := range cf.MenuDigits() {
		if !cf.HasQueue(cf.IVR.Menu[digit]) {
			errs = append(errs, fmt.Errorf("ivr menu %s points at unknown queue %q", digit, cf.IVR.Menu[digit]))
		}
	}
	if cf.IVR.NumDigits < 0 || cf.IVR.Timeout < 0 {
		errs = append(errs, errors.New("ivr timeout and num_digits must not be negative"))
	}
	return joinErrors(errs)
}

func (cf CallFlow) HasQueue(name string) bool {
	for _, q := range cf.Queues {
		if strings.EqualFold(q.Name, name) {
			return true
		}
	}
	return false
}

// Queue returns the queue configuration by name.
func (cf CallFlow) Queue(name string) (QueueConfig, bool) {
	for _, q := range cf.Queues {
		if strings.EqualFold(q.Name, name) {
			return q, true
		}
	}
	return QueueConfig{}, false
}

// QueueForDigits resolves a pressed option to a queue name.
func (cf CallFlow) QueueForDigits(digits string) (string, bool) {
	q, ok := cf.IVR.Menu[strings.TrimSpace(digits)]
	return q, ok
}

// MenuDigits returns the configured options in a stable order.
func (cf CallFlow) MenuDigits() []string {
	out := make([]string, 0, len(cf.IVR.Menu))
	for d := range cf.IVR.Menu {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
