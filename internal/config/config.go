// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mlnoga/quadfilter/internal/edge"
	"github.com/mlnoga/quadfilter/internal/enhance"
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Settings for the written results
type Output struct {
	Dir         string `toml:"dir"`          // output directory pattern, expands %dir and %name
	Format      string `toml:"format"`       // file suffix of written images
	JPEGQuality int    `toml:"jpeg_quality"` // 1..100
	PanelWidth  int    `toml:"panel_width"`  // maximum montage panel width, 0 for original size
	Replicate   bool   `toml:"replicate"`    // write gray results of color inputs as three channels
}

// Processing settings, as read from a TOML file and overridden by flags
type Config struct {
	Threads int                 `toml:"threads"` // 0 for all available cores
	CLAHE   enhance.CLAHEParams `toml:"clahe"`
	Canny   edge.CannyParams    `toml:"canny"`
	Output  Output              `toml:"output"`
}

func Default() *Config {
	return &Config{
		CLAHE: enhance.DefaultCLAHEParams(),
		Canny: edge.DefaultCannyParams(),
		Output: Output{
			Dir:         "%dir/processed",
			Format:      "jpg",
			JPEGQuality: 95,
			Replicate:   true,
		},
	}
}

// Reads the configuration from the given TOML file. Missing keys keep their
// default values, unknown keys are an error
func Load(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parses a TOML document on top of the defaults, and validates the result
func Parse(doc string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(doc, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrInvalidConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", raster.ErrInvalidConfig, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var formats = map[string]bool{"png": true, "jpg": true, "jpeg": true, "bmp": true, "tif": true, "tiff": true}

func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("%w: %d threads", raster.ErrInvalidConfig, c.Threads)
	}
	if err := c.CLAHE.Validate(); err != nil {
		return err
	}
	if err := c.Canny.Validate(); err != nil {
		return err
	}
	if !formats[strings.ToLower(c.Output.Format)] {
		return fmt.Errorf("%w: unknown output format %q", raster.ErrInvalidConfig, c.Output.Format)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d outside 1..100", raster.ErrInvalidConfig, c.Output.JPEGQuality)
	}
	if c.Output.PanelWidth < 0 {
		return fmt.Errorf("%w: panel width %d", raster.ErrInvalidConfig, c.Output.PanelWidth)
	}
	return nil
}

// Writes the configuration as TOML
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// File name of the titled overview of all results, always PNG
const MontageFileName = "combined_results.png"

// Returns the file name pattern for results of the named step
func (c *Config) OutputPattern(step string) string {
	return fmt.Sprintf("%s/%s.%s", c.Output.Dir, step, strings.ToLower(c.Output.Format))
}

// Returns the file name pattern for the montage of all results
func (c *Config) MontagePattern() string {
	return c.Output.Dir + "/" + MontageFileName
}

// Gives every input its own output directory, so results of several inputs
// from one folder don't overwrite each other. Directories which already
// depend on the input name are kept
func (c *Config) SeparateInputs() {
	if !strings.Contains(c.Output.Dir, "%name") {
		c.Output.Dir += "/%name"
	}
}
