package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents different output formats
type OutputFormat string

const (
	FormatText  OutputFormat = "text"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatTable OutputFormat = "table"
)

// ValidFormats lists the accepted output formats
var ValidFormats = []OutputFormat{FormatText, FormatJSON, FormatCSV, FormatTable}

// Defaults shared by the CLI flags and the merge logic
const (
	DefaultExtension = ".har"
	DefaultFormat    = FormatText
)

// Config holds the application configuration
type Config struct {
	Verbose bool
	Quiet   bool // Suppress console output

	// Search input
	Search           string   // String to look for; prompted when empty
	HARDir           string   // Base directory for relative HAR paths
	DefaultExtension string   // Appended to bare file names without an extension
	Files            []string // HAR files to scan

	// Output
	OutputFile   string       // Write the report here instead of stdout
	OutputFormat OutputFormat // text, json, csv, table
	LogFile      string       // File to save system logs (separate from the report)
	ExportHAR    string       // Write matched entries as a filtered HAR file
	Progress     bool         // Show a progress bar when scanning several files
}

// FileConfig represents the configuration file structure
type FileConfig struct {
	Verbose          *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Search           *string `json:"search,omitempty" yaml:"search,omitempty"`
	HARDir           *string `json:"har_dir,omitempty" yaml:"har_dir,omitempty"`
	DefaultExtension *string `json:"default_extension,omitempty" yaml:"default_extension,omitempty"`
	OutputFile       *string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
	OutputFormat     *string `json:"output_format,omitempty" yaml:"output_format,omitempty"`
	LogFile          *string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Progress         *bool   `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// Environment variables read by LoadEnv
const (
	EnvSearch  = "HARSEARCH_SEARCH"
	EnvDir     = "HARSEARCH_DIR"
	EnvFormat  = "HARSEARCH_FORMAT"
	EnvOutput  = "HARSEARCH_OUTPUT"
	EnvLogFile = "HARSEARCH_LOG_FILE"
)

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "harsearch")
	}

	// Fallback to ~/.config/harsearch
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "harsearch")
	}

	// Final fallback to current directory
	return ".harsearch"
}

// GetDefaultConfigPath returns the default configuration file path,
// preferring config.yaml over config.json
func GetDefaultConfigPath() string {
	dir := GetConfigDir()
	for _, name := range []string{"config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dir, "config.json")
}

// LoadConfigFile loads configuration from a YAML or JSON file.
// A missing file yields an empty configuration.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil // Return empty config if file doesn't exist
		}
		return nil, err
	}

	var config FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// LoadEnv reads HARSEARCH_* variables, loading a .env file from the working
// directory first when one exists. Variables already set in the process
// environment win over .env entries.
func LoadEnv() *FileConfig {
	_ = godotenv.Load() // .env is optional

	var config FileConfig
	if v, ok := os.LookupEnv(EnvSearch); ok && v != "" {
		config.Search = &v
	}
	if v, ok := os.LookupEnv(EnvDir); ok && v != "" {
		config.HARDir = &v
	}
	if v, ok := os.LookupEnv(EnvFormat); ok && v != "" {
		config.OutputFormat = &v
	}
	if v, ok := os.LookupEnv(EnvOutput); ok && v != "" {
		config.OutputFile = &v
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok && v != "" {
		config.LogFile = &v
	}
	return &config
}

// MergeWithFileConfig merges file configuration with CLI configuration.
// CLI parameters take precedence over file configuration; a field is
// only filled while it still holds its flag default.
func (c *Config) MergeWithFileConfig(fileConfig *FileConfig) {
	if fileConfig == nil {
		return
	}
	if fileConfig.Verbose != nil && !c.Verbose {
		c.Verbose = *fileConfig.Verbose
	}
	if fileConfig.Search != nil && c.Search == "" {
		c.Search = *fileConfig.Search
	}
	if fileConfig.HARDir != nil && c.HARDir == "" {
		c.HARDir = *fileConfig.HARDir
	}
	if fileConfig.DefaultExtension != nil && c.DefaultExtension == DefaultExtension {
		c.DefaultExtension = *fileConfig.DefaultExtension
	}
	if fileConfig.OutputFile != nil && c.OutputFile == "" {
		c.OutputFile = *fileConfig.OutputFile
	}
	if fileConfig.OutputFormat != nil && c.OutputFormat == DefaultFormat {
		c.OutputFormat = OutputFormat(*fileConfig.OutputFormat)
	}
	if fileConfig.LogFile != nil && c.LogFile == "" {
		c.LogFile = *fileConfig.LogFile
	}
	if fileConfig.Progress != nil && !c.Progress {
		c.Progress = *fileConfig.Progress
	}
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	valid := false
	for _, f := range ValidFormats {
		if c.OutputFormat == f {
			valid = true
			break
		}
	}
	if !valid {
		names := make([]string, len(ValidFormats))
		for i, f := range ValidFormats {
			names[i] = string(f)
		}
		return fmt.Errorf("invalid output format '%s', must be one of: %s", c.OutputFormat, strings.Join(names, ", "))
	}

	// If quiet mode is enabled, require output file
	if c.Quiet && c.OutputFile == "" {
		return fmt.Errorf("quiet mode (-q) requires output file (-o)")
	}

	if c.ExportHAR != "" && c.ExportHAR == c.OutputFile {
		return fmt.Errorf("export-har cannot be the same file as output")
	}

	return nil
}

// ResolvePath turns a user-supplied name into a HAR file path.
// Relative paths are joined to HARDir, and names without an extension get
// DefaultExtension.
func (c *Config) ResolvePath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if c.DefaultExtension != "" && filepath.Ext(name) == "" {
		name += c.DefaultExtension
	}
	if c.HARDir != "" && !filepath.IsAbs(name) {
		name = filepath.Join(c.HARDir, name)
	}
	return name
}
