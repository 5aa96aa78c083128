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

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	nl "github.com/mlnoga/quadfilter/internal"
	"github.com/mlnoga/quadfilter/internal/config"
	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var configFile = flag.String("config", "", "read settings from TOML `file`, flags given explicitly take precedence")
var log = flag.String("log", "", "save log output to `file`")
var printJSON = flag.Bool("json", false, "print the operator sequence as JSON before running it")

var out = flag.String("out", "%dir/processed", "output directory `pattern`. %dir expands to the directory of each input file")
var format = flag.String("format", "jpg", "output image format of the filter results, one of png, jpg, bmp, tif")
var jpgQuality = flag.Int("jpgQuality", 95, "JPEG output quality, 1..100")
var panelWidth = flag.Int("panelWidth", 0, "scale montage panels down to this width in pixels, 0=original size")
var replicate = flag.Bool("replicate", true, "write gray results with three channels")
var chart = flag.Bool("chart", false, "stats: also write a histogram chart per input")
var threads = flag.Int("threads", 0, "number of images to process concurrently, 0=number of CPUs")

var clipLimit = flag.Float64("clipLimit", 3.0, "CLAHE clip limit, relative to a uniform histogram")
var tileRows = flag.Int("tileRows", 8, "CLAHE tile grid rows")
var tileCols = flag.Int("tileCols", 8, "CLAHE tile grid columns")

var cannyLow = flag.Float64("cannyLow", 100, "Canny low threshold on the gradient magnitude")
var cannyHigh = flag.Float64("cannyHigh", 200, "Canny high threshold on the gradient magnitude")
var gaussSize = flag.Int("gaussSize", 5, "Canny gaussian smoothing kernel size, odd")

var addr = flag.String("addr", ":8080", "serve: listen on this `address`")
var chroot = flag.String("chroot", "", "serve: change filesystem root to `dir` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change user id before serving, -1=keep")

func main() {
	logWriter := nl.LogWriter()
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Quadfilter Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (process|invert|equalize|clahe|canny|stats|serve|config|legal|version) (img0.png ... imgn.png)

Commands:
  process  Apply all four filters and write each result plus a montage
  invert   Invert images
  equalize Equalize histograms globally
  clahe    Apply contrast limited adaptive histogram equalization
  canny    Detect edges
  stats    Show input image statistics
  serve    Serve the REST API
  config   Print the effective settings as TOML
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s': %s\n", *log, err.Error())
		}
	}
	defer nl.LogSync()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		nl.LogFatalf("Error in configuration: %s\n", err.Error())
	}

	switch args[0] {
	case "process", "invert", "equalize", "clahe", "canny", "stats":
		err = runFiles(args[0], args[1:], cfg, logWriter)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid, logWriter); err == nil {
			err = rest.Serve(*addr, cfg, logWriter)
		}

	case "config":
		err = cfg.Write(os.Stdout)

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s on %s with %d physical cores and %d MiB memory\n",
			version, cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, memory.TotalMemory()/1024/1024)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}
	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			nl.LogFatal("Could not write memory profile: ", err)
		}
	}
}

// Reads the config file if given, then applies all flags set explicitly on the command line
func loadConfig() (cfg *config.Config, err error) {
	cfg = config.Default()
	if *configFile != "" {
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = *out
		case "format":
			cfg.Output.Format = *format
		case "jpgQuality":
			cfg.Output.JPEGQuality = *jpgQuality
		case "panelWidth":
			cfg.Output.PanelWidth = *panelWidth
		case "replicate":
			cfg.Output.Replicate = *replicate
		case "threads":
			cfg.Threads = *threads
		case "clipLimit":
			cfg.CLAHE.ClipLimit = *clipLimit
		case "tileRows":
			cfg.CLAHE.TileRows = *tileRows
		case "tileCols":
			cfg.CLAHE.TileCols = *tileCols
		case "cannyLow":
			cfg.Canny.Low = *cannyLow
		case "cannyHigh":
			cfg.Canny.High = *cannyHigh
		case "gaussSize":
			cfg.Canny.GaussianSize = *gaussSize
		}
	})
	return cfg, cfg.Validate()
}

// Applies the named command to all files matching the given patterns
func runFiles(command string, patterns []string, cfg *config.Config, logWriter io.Writer) error {
	if len(patterns) == 0 {
		return errors.New("no input files given")
	}
	if countInputs(patterns) > 1 {
		cfg.SeparateInputs()
	}
	perFile, err := newPipeline(command, cfg, *chart)
	if err != nil {
		return err
	}
	seq := ops.NewOpSequence(ops.NewOpLoadMany(patterns), ops.NewOpForEach(perFile))

	c := ops.NewContext(logWriter)
	c.JPEGQuality = cfg.Output.JPEGQuality
	if cfg.Threads > 0 {
		c.MaxThreads = cfg.Threads
	}
	fmt.Fprintf(logWriter, "Running on %s with %d threads and %d MiB memory\n", c.CPU, c.MaxThreads, c.MemoryMB)

	if *printJSON {
		m, err := json.MarshalIndent(perFile, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(logWriter, "\nProcessing with these settings:\n%s\n", string(m))
	}

	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Counts the files matching the given patterns. Malformed patterns count as
// one input, loading reports them later
func countInputs(patterns []string) (n int) {
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			n++
			continue
		}
		n += len(matches)
	}
	return n
}
