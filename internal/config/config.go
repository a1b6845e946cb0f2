// Package config loads the labdigitize configuration from an optional YAML
// file, a .env file and LABDIGITIZE_* environment variables, in that order
// of increasing precedence.
//
// Example configuration:
//
//	data_dir: data
//	outputs_dir: outputs
//	dpi: 300
//	archive_pdf: true
//	ocr:
//	  engine: documentai
//	  documentai:
//	    project_id: "your-gcp-project-id"
//	    location: "us"
//	    processor_id: "your-processor-id"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gardar/labdigitize/pkg/gdocai"
	"github.com/gardar/labdigitize/pkg/hitl"
)

const (
	EngineTesseract  = "tesseract"
	EngineDocumentAI = "documentai"

	ToolkitNative = "native"
	ToolkitOpenCV = "opencv"
)

const envPrefix = "LABDIGITIZE_"

// Config is the full runtime configuration.
type Config struct {
	DataDir        string `yaml:"data_dir"`
	ProcessedDir   string `yaml:"processed_dir"`   // <data_dir>/processed when empty
	CorrectionsDir string `yaml:"corrections_dir"` // <data_dir>/corrections when empty
	OutputsDir     string `yaml:"outputs_dir"`
	ModelDir       string `yaml:"model_dir"`
	DatabaseURL    string `yaml:"database_url"` // corrections and results go to PostgreSQL when set

	DPI             int     `yaml:"dpi"`
	LineThreshold   int     `yaml:"line_threshold"`
	MinConfidence   int     `yaml:"min_confidence"`
	HeaderLines     int     `yaml:"header_lines"`
	ReviewThreshold float64 `yaml:"review_threshold"`
	RetrainMinimum  int     `yaml:"retrain_minimum"`
	Workers         int     `yaml:"workers"`
	ArchivePDF      bool    `yaml:"archive_pdf"`
	LogLevel        string  `yaml:"log_level"`

	OCR        OCRConfig        `yaml:"ocr"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
}

// OCRConfig selects and configures the recognition engine.
type OCRConfig struct {
	Engine      string        `yaml:"engine"`
	Languages   []string      `yaml:"languages"`
	PageSegMode int           `yaml:"page_seg_mode"`
	DocumentAI  gdocai.Config `yaml:"documentai"`
}

// PreprocessConfig selects the image toolkit and the PDF rasterizer.
type PreprocessConfig struct {
	Toolkit  string `yaml:"toolkit"`
	Pdftoppm string `yaml:"pdftoppm"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:         "data",
		OutputsDir:      "outputs",
		ModelDir:        "models",
		DPI:             300,
		LineThreshold:   10,
		MinConfidence:   30,
		HeaderLines:     40,
		ReviewThreshold: hitl.ReviewThreshold,
		RetrainMinimum:  hitl.DefaultMinCorpus,
		Workers:         4,
		LogLevel:        "info",
		OCR: OCRConfig{
			Engine:      EngineTesseract,
			Languages:   []string{"eng"},
			PageSegMode: 6,
		},
		Preprocess: PreprocessConfig{
			Toolkit:  ToolkitNative,
			Pdftoppm: "pdftoppm",
		},
	}
}

// Load builds the configuration. A missing .env file is ignored; a path
// that was given but cannot be read is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str("DATA_DIR", &c.DataDir)
	str("PROCESSED_DIR", &c.ProcessedDir)
	str("CORRECTIONS_DIR", &c.CorrectionsDir)
	str("OUTPUTS_DIR", &c.OutputsDir)
	str("MODEL_DIR", &c.ModelDir)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("OCR_ENGINE", &c.OCR.Engine)
	str("TOOLKIT", &c.Preprocess.Toolkit)
	str("PDFTOPPM", &c.Preprocess.Pdftoppm)
	str("DOCUMENTAI_PROJECT_ID", &c.OCR.DocumentAI.ProjectID)
	str("DOCUMENTAI_LOCATION", &c.OCR.DocumentAI.Location)
	str("DOCUMENTAI_PROCESSOR_ID", &c.OCR.DocumentAI.ProcessorID)
	if v, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok && c.OCR.DocumentAI.CredentialsFile == "" {
		c.OCR.DocumentAI.CredentialsFile = v
	}
	if v, ok := os.LookupEnv(envPrefix + "OCR_LANGUAGES"); ok {
		c.OCR.Languages = splitList(v)
	}

	var errs []error
	num := func(name string, dst *int) {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = n
	}
	num("DPI", &c.DPI)
	num("LINE_THRESHOLD", &c.LineThreshold)
	num("MIN_CONFIDENCE", &c.MinConfidence)
	num("HEADER_LINES", &c.HeaderLines)
	num("RETRAIN_MINIMUM", &c.RetrainMinimum)
	num("WORKERS", &c.Workers)
	num("OCR_PAGE_SEG_MODE", &c.OCR.PageSegMode)

	if v, ok := os.LookupEnv(envPrefix + "REVIEW_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREVIEW_THRESHOLD: %w", envPrefix, err))
		} else {
			c.ReviewThreshold = f
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "ARCHIVE_PDF"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sARCHIVE_PDF: %w", envPrefix, err))
		} else {
			c.ArchivePDF = b
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// resolve fills the directories derived from DataDir.
func (c *Config) resolve() {
	if c.ProcessedDir == "" {
		c.ProcessedDir = filepath.Join(c.DataDir, "processed")
	}
	if c.CorrectionsDir == "" {
		c.CorrectionsDir = filepath.Join(c.DataDir, "corrections")
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("dpi", c.DPI)
	positive("line_threshold", c.LineThreshold)
	positive("header_lines", c.HeaderLines)
	positive("retrain_minimum", c.RetrainMinimum)
	positive("workers", c.Workers)
	if c.MinConfidence < 0 || c.MinConfidence >= 100 {
		errs = append(errs, fmt.Errorf("min_confidence must be in [0,100), got %d", c.MinConfidence))
	}
	if c.ReviewThreshold <= 0 || c.ReviewThreshold > 1 {
		errs = append(errs, fmt.Errorf("review_threshold must be in (0,1], got %v", c.ReviewThreshold))
	}

	switch c.OCR.Engine {
	case EngineTesseract:
		if len(c.OCR.Languages) == 0 {
			errs = append(errs, errors.New("ocr.languages must not be empty"))
		}
	case EngineDocumentAI:
		if err := c.OCR.DocumentAI.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ocr.documentai: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ocr.engine %q", c.OCR.Engine))
	}

	switch c.Preprocess.Toolkit {
	case ToolkitNative, ToolkitOpenCV:
	default:
		errs = append(errs, fmt.Errorf("unknown preprocess.toolkit %q", c.Preprocess.Toolkit))
	}
	return errors.Join(errs...)
}

// ModelPath is the classifier file inside ModelDir.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelDir, hitl.ModelFile)
}

// Dirs lists the directories the application writes to.
func (c *Config) Dirs() []string {
	return []string{c.DataDir, c.ProcessedDir, c.CorrectionsDir, c.OutputsDir, c.ModelDir}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
