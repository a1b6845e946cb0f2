package gdocai

import (
	"errors"
	"fmt"
)

// Config identifies the Document AI processor used for recognition.
type Config struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// DumpDir, when set, receives the raw JSON response for every page.
	DumpDir string `yaml:"dump_dir"`
}

// Validate reports missing processor coordinates.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("document ai config is nil")
	}
	var missing []error
	if c.ProjectID == "" {
		missing = append(missing, errors.New("project_id is required"))
	}
	if c.Location == "" {
		missing = append(missing, errors.New("location is required"))
	}
	if c.ProcessorID == "" {
		missing = append(missing, errors.New("processor_id is required"))
	}
	return errors.Join(missing...)
}

// ProcessorName builds the resource name of the processor.
func (c *Config) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}
