// internal/config/config.go
//
// This package holds the run configuration for postpress. The four required
// inputs arrive as CLI flags; everything else has defaults that an optional
// postpress.yaml in the working directory may override.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional per-directory override file.
const ConfigFile = "postpress.yaml"

// Output directory names, relative to the output root.
const (
	LabelsDir  = "labels"
	NotesDir   = "notes"
	ResultsDir = "results"
)

// ReportFile is the reconciliation report written under results/.
const ReportFile = "compiled_results.csv"

// LogFile is the append-only run log written under the output root.
const LogFile = "postpress.log"

const (
	defaultRequestTimeoutSecs = 60
	defaultLabelTimeoutSecs   = 10
	defaultLabelSize          = "4x6"
	defaultLabelFormat        = "PDF"
	defaultNoteFont           = "Helvetica"
	defaultNoteFontSize       = 10.0
)

// CarrierOptions tunes how the carrier API is called.
type CarrierOptions struct {
	// BaseURL overrides the carrier endpoint. Tests point this at a local
	// server; production leaves it empty.
	BaseURL string `yaml:"base_url,omitempty"`

	// Carriers and Services restrict which rate offers are eligible when
	// selecting the cheapest rate.
	Carriers []string `yaml:"carriers"`
	Services []string `yaml:"services"`

	// RequestTimeoutSeconds bounds every carrier API call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// LabelTimeoutSeconds bounds the label document download.
	LabelTimeoutSeconds int `yaml:"label_timeout_seconds"`
}

// LabelOptions are passed to the carrier when creating shipments.
type LabelOptions struct {
	Size   string `yaml:"size"`
	Format string `yaml:"format"`
}

// NoteOptions control the rendered note document.
type NoteOptions struct {
	Font     string  `yaml:"font"`
	FontSize float64 `yaml:"font_size"`
}

// RunOptions models postpress.yaml.
type RunOptions struct {
	Version    int            `yaml:"version"`
	OutputRoot string         `yaml:"output_root"`
	Carrier    CarrierOptions `yaml:"carrier"`
	Label      LabelOptions   `yaml:"label"`
	Note       NoteOptions    `yaml:"note"`
}

// Config is the fully resolved configuration for one run.
type Config struct {
	// APIKey authenticates every carrier call. It is threaded explicitly
	// into the client, never read from ambient state.
	APIKey string

	// FromAddressID and ParcelID are pre-created carrier entities shared by
	// every shipment in the batch.
	FromAddressID string
	ParcelID      string

	// InputPath is the recipient spreadsheet (CSV or XLSX).
	InputPath string

	// WorkDir is the directory postpress was run from.
	WorkDir string

	Run RunOptions
}

// New resolves the configuration for a run rooted at workDir, loading
// postpress.yaml overrides when the file exists.
func New(workDir, apiKey, fromAddressID, parcelID, inputPath string) (*Config, error) {
	cfg := &Config{
		APIKey:        strings.TrimSpace(apiKey),
		FromAddressID: strings.TrimSpace(fromAddressID),
		ParcelID:      strings.TrimSpace(parcelID),
		InputPath:     strings.TrimSpace(inputPath),
		WorkDir:       workDir,
		Run:           defaultRunOptions(),
	}

	if err := cfg.loadRunOptions(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OutputRoot returns the resolved directory all artifacts are written under.
func (c *Config) OutputRoot() string {
	return c.Run.OutputRoot
}

// LabelsPath returns the directory holding downloaded label documents.
func (c *Config) LabelsPath() string {
	return filepath.Join(c.OutputRoot(), LabelsDir)
}

// NotesPath returns the directory holding rendered note documents.
func (c *Config) NotesPath() string {
	return filepath.Join(c.OutputRoot(), NotesDir)
}

// ResultsPath returns the directory holding merged documents and the report.
func (c *Config) ResultsPath() string {
	return filepath.Join(c.OutputRoot(), ResultsDir)
}

// ReportPath returns the reconciliation report location.
func (c *Config) ReportPath() string {
	return filepath.Join(c.ResultsPath(), ReportFile)
}

// LogPath returns the run log location.
func (c *Config) LogPath() string {
	return filepath.Join(c.OutputRoot(), LogFile)
}

// RequestTimeout bounds each carrier API call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Run.Carrier.RequestTimeoutSeconds) * time.Second
}

// LabelTimeout bounds each label document download.
func (c *Config) LabelTimeout() time.Duration {
	return time.Duration(c.Run.Carrier.LabelTimeoutSeconds) * time.Second
}

// EnsureOutputDirs creates the labels/notes/results tree.
func (c *Config) EnsureOutputDirs() error {
	dirs := []string{
		c.LabelsPath(),
		c.NotesPath(),
		c.ResultsPath(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure output dir %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) loadRunOptions() error {
	path := filepath.Join(c.WorkDir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Run.normalize(c.WorkDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultRunOptions()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	parsed.normalize(c.WorkDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	c.Run = parsed
	return nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: api key is required")
	}
	if c.FromAddressID == "" {
		return fmt.Errorf("config: from-address id is required")
	}
	if c.ParcelID == "" {
		return fmt.Errorf("config: parcel id is required")
	}
	if c.InputPath == "" {
		return fmt.Errorf("config: input path is required")
	}
	return nil
}

func defaultRunOptions() RunOptions {
	return RunOptions{
		Version:    1,
		OutputRoot: ".",
		Carrier: CarrierOptions{
			Carriers:              []string{"USPS"},
			Services:              []string{"Priority"},
			RequestTimeoutSeconds: defaultRequestTimeoutSecs,
			LabelTimeoutSeconds:   defaultLabelTimeoutSecs,
		},
		Label: LabelOptions{
			Size:   defaultLabelSize,
			Format: defaultLabelFormat,
		},
		Note: NoteOptions{
			Font:     defaultNoteFont,
			FontSize: defaultNoteFontSize,
		},
	}
}

func (ro *RunOptions) applyDefaults() {
	if ro.Version == 0 {
		ro.Version = 1
	}
	if ro.OutputRoot == "" {
		ro.OutputRoot = "."
	}
	if len(ro.Carrier.Carriers) == 0 {
		ro.Carrier.Carriers = []string{"USPS"}
	}
	if len(ro.Carrier.Services) == 0 {
		ro.Carrier.Services = []string{"Priority"}
	}
	if ro.Carrier.RequestTimeoutSeconds == 0 {
		ro.Carrier.RequestTimeoutSeconds = defaultRequestTimeoutSecs
	}
	if ro.Carrier.LabelTimeoutSeconds == 0 {
		ro.Carrier.LabelTimeoutSeconds = defaultLabelTimeoutSecs
	}
	if ro.Label.Size == "" {
		ro.Label.Size = defaultLabelSize
	}
	if ro.Label.Format == "" {
		ro.Label.Format = defaultLabelFormat
	}
	if ro.Note.Font == "" {
		ro.Note.Font = defaultNoteFont
	}
	if ro.Note.FontSize == 0 {
		ro.Note.FontSize = defaultNoteFontSize
	}
}

func (ro *RunOptions) normalize(base string) {
	ro.OutputRoot = resolvePath(base, ro.OutputRoot)
	for i, carrier := range ro.Carrier.Carriers {
		ro.Carrier.Carriers[i] = strings.TrimSpace(carrier)
	}
	for i, service := range ro.Carrier.Services {
		ro.Carrier.Services[i] = strings.TrimSpace(service)
	}
	ro.Carrier.BaseURL = strings.TrimSpace(ro.Carrier.BaseURL)
	ro.Label.Size = strings.TrimSpace(ro.Label.Size)
	ro.Label.Format = strings.ToUpper(strings.TrimSpace(ro.Label.Format))
	ro.Note.Font = strings.TrimSpace(ro.Note.Font)
}

func (ro RunOptions) validate() error {
	if ro.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if ro.Carrier.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("carrier.request_timeout_seconds must be >= 0")
	}
	if ro.Carrier.LabelTimeoutSeconds < 0 {
		return fmt.Errorf("carrier.label_timeout_seconds must be >= 0")
	}
	if ro.Note.FontSize < 0 {
		return fmt.Errorf("note.font_size must be >= 0")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return base
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
