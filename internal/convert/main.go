package convert

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gruppe-adler/dem2rgb/internal/metajson"
	"github.com/gruppe-adler/dem2rgb/internal/pipeline"
	"github.com/gruppe-adler/dem2rgb/internal/raster"
	"github.com/gruppe-adler/dem2rgb/internal/terrainrgb"
	"github.com/gruppe-adler/dem2rgb/internal/utils"
)

// stringList collects repeatable flags (-co NAME=VALUE -co ...).
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

// Run is the convert subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {
	cfg := DefaultConfig()

	inPtr := flagSet.String("in", "", "Path to source elevation raster")
	outPtr := flagSet.String("out", "", "Path to destination raster")
	configPtr := flagSet.String("config", "", "Path to TOML config file with defaults")
	bandPtr := flagSet.Int("band", cfg.Band, "Source band to convert")
	formatPtr := flagSet.String("of", cfg.Format, "Output format")
	workersPtr := flagSet.Int("workers", cfg.Workers, "Number of workers (1 disables the worker pool)")
	resolutionPtr := flagSet.Float64("resolution", cfg.Resolution, "Elevation resolution multiplier")
	scalePtr := flagSet.String("scale", cfg.Scale, "Output scale range \"min max\"")
	nodataPtr := flagSet.String("nodata", cfg.NoData, "Nodata mapping \"own|<num> <num>\"")
	memoryPtr := flagSet.String("memory", cfg.Memory, "Block buffer memory budget")
	var creationOptions stringList
	flagSet.Var(&creationOptions, "co", "Creation option NAME=VALUE (repeatable)")

	flagSet.Parse(os.Args[2:])

	// make sure both paths are present
	if *inPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if *configPtr != "" {
		if err := cfg.LoadFile(*configPtr); err != nil {
			log.Fatal(err)
		}
	}

	// flags beat the config file, but only the ones actually given
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "band":
			cfg.Band = *bandPtr
		case "of":
			cfg.Format = *formatPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "resolution":
			cfg.Resolution = *resolutionPtr
		case "scale":
			cfg.Scale = *scalePtr
		case "nodata":
			cfg.NoData = *nodataPtr
		case "memory":
			cfg.Memory = *memoryPtr
		case "co":
			cfg.CreationOptions = []string(creationOptions)
		}
	})

	if err := run(cfg, *inPtr, *outPtr); err != nil {
		log.Fatal(err)
	}
}

func run(cfg Config, inPath, outPath string) error {
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if utils.IsFile(outPath) || utils.IsDirectory(outPath) {
		return &raster.ConfigError{Reason: fmt.Sprintf("%s: %v", outPath, raster.ErrExists)}
	}

	src, err := raster.OpenSource(inPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	if cfg.Band > info.Bands {
		return &raster.SourceError{Path: inPath, Op: "band", Err: fmt.Errorf("invalid band number %d", cfg.Band)}
	}
	if !info.HasGeoTransform {
		return &raster.SourceError{Path: inPath, Op: "geotransform", Err: fmt.Errorf("missing geotransformation")}
	}

	// resolve the nodata mapping before anything is created
	var srcNoData *float32
	var sidecarNoData *metajson.NoData
	if nd := cfg.noData; nd != nil {
		if nd.own {
			if info.NoData != nil {
				f := float32(*info.NoData)
				srcNoData = &f
			}
		} else {
			srcNoData = &nd.source
		}
		if srcNoData != nil {
			sidecarNoData = &metajson.NoData{Source: float64(*srcNoData), Dest: nd.dest}
		}
	}

	enc, err := terrainrgb.New(terrainrgb.Options{
		Resolution:   float32(cfg.Resolution),
		ScaleMin:     cfg.scaleMin,
		ScaleMax:     cfg.scaleMax,
		SourceNoData: srcNoData,
		DestNoData:   destNoData(cfg),
	})
	if err != nil {
		return err
	}

	fmt.Printf("▶️  Converting %s → %s\n", inPath, outPath)
	fmt.Printf("ℹ️  Scale %d ... %d m, resolution %g, %d worker(s)\n",
		cfg.scaleMin, cfg.scaleMax, cfg.Resolution, cfg.Workers)
	if srcNoData != nil {
		fmt.Printf("ℹ️  NODATA %g → %d m\n", *srcNoData, cfg.noData.dest)
	}

	sink, err := raster.CreateSink(cfg.Format, outPath, info.Width, info.Height, cfg.CreationOptions)
	if err != nil {
		return err
	}
	if err := convertDataset(cfg, src, sink, enc, info); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}

	meta := metajson.New(inPath, info, cfg.scaleMin, cfg.scaleMax, cfg.Resolution, sidecarNoData)
	if err := metajson.Write(outPath+".aux.json", meta); err != nil {
		return err
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
	return nil
}

func destNoData(cfg Config) int {
	if cfg.noData != nil {
		return cfg.noData.dest
	}
	return 0
}

func convertDataset(cfg Config, src raster.Source, sink raster.Sink, enc *terrainrgb.Encoder, info raster.Info) error {
	if err := sink.SetProjection(info.Projection); err != nil {
		return err
	}
	if err := sink.SetGeoTransform(info.GeoTransform); err != nil {
		return err
	}

	pl := &pipeline.Pipeline{
		Source:       src,
		Band:         cfg.Band,
		Sink:         sink,
		Encoder:      enc,
		Workers:      cfg.Workers,
		SampleBudget: cfg.sampleBudget,
		Progress:     progressPrinter(),
	}

	blockWidth, blockHeight, total := pl.BlockLayout()
	fmt.Printf("ℹ️  Block size %dx%d (%s of buffers, %d blocks)\n",
		blockWidth, blockHeight, humanize.IBytes(uint64(blockWidth)*uint64(blockHeight)*7), total)

	return pl.Run()
}

// progressPrinter renders the classic gdal terminal progress line:
// 0...10...20... ... 100 - done.
func progressPrinter() func(completed, total int) {
	last := -1 // in fortieths
	return func(completed, total int) {
		tick := completed * 40 / total
		for t := last + 1; t <= tick; t++ {
			if t%4 == 0 {
				fmt.Printf("%d", t/4*10)
			} else {
				fmt.Print(".")
			}
		}
		last = tick
		if completed == total {
			fmt.Println(" - done.")
		}
	}
}
