package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/svdmin/minify/xml"
)

// Config holds the options that can be preloaded from a TOML file. Unset keys leave the defaults alone.
type Config struct {
	Output    *string           `toml:"output"`
	Type      *string           `toml:"type"`
	Ext       map[string]string `toml:"ext"`
	Recursive *bool             `toml:"recursive"`
	All       *bool             `toml:"all"`
	Quiet     *bool             `toml:"quiet"`
	Verbose   *int              `toml:"verbose"`
	Preserve  []string          `toml:"preserve"`
	SVDSchema *bool             `toml:"svd-schema"`
	Alphabet  *string           `toml:"alphabet"`
}

// LoadConfig reads and decodes a TOML config file.
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config %s: %w", filename, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", filename, err)
	}
	return c, nil
}

type isSetter interface {
	IsSet(string) bool
}

// Apply copies the config values into the global options, skipping those set on the command line.
func (c Config) Apply(f isSetter, output *string, xmlMinifier *xml.Minifier) {
	if c.Output != nil && !f.IsSet("output") {
		*output = *c.Output
	}
	if c.Type != nil && !f.IsSet("type") {
		mimetype = *c.Type
	}
	if c.Recursive != nil && !f.IsSet("recursive") {
		recursive = *c.Recursive
	}
	if c.All != nil && !f.IsSet("all") {
		hidden = *c.All
	}
	if c.Quiet != nil && !f.IsSet("quiet") {
		quiet = *c.Quiet
	}
	if c.Verbose != nil && !f.IsSet("verbose") {
		verbose = *c.Verbose
	}
	if c.Preserve != nil && !f.IsSet("preserve") {
		preserve = c.Preserve
	}
	if c.SVDSchema != nil && !f.IsSet("svd-schema") {
		svdSchema = *c.SVDSchema
	}
	if c.Alphabet != nil && !f.IsSet("alphabet") {
		xmlMinifier.Alphabet = *c.Alphabet
	}

	// extensions given on the command line win over those of the config
	if 0 < len(c.Ext) && extensions == nil {
		extensions = map[string]string{}
	}
	for ext, filetype := range c.Ext {
		if _, ok := extensions[ext]; !ok {
			extensions[ext] = filetype
		}
	}
}
