// Package info implements the source-inspection subcommand. It opens an
// elevation raster with the registered drivers and prints its metadata
// without converting anything.
package info

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

// Run is the info subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {
	inPtr := flagSet.String("in", "", "Path to source elevation raster")

	flagSet.Parse(os.Args[2:])

	if *inPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*inPtr); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	src, err := raster.OpenSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	fmt.Printf("Source      %s\n", path)
	fmt.Printf("Size        %d x %d (%s pixels)\n", info.Width, info.Height,
		humanize.Comma(int64(info.Width)*int64(info.Height)))
	fmt.Printf("Bands       %d\n", info.Bands)
	fmt.Printf("Native tile %d x %d\n", info.TileWidth, info.TileHeight)

	if info.HasGeoTransform {
		gt := info.GeoTransform
		fmt.Printf("Origin      (%.6f, %.6f)\n", gt[0], gt[3])
		fmt.Printf("Pixel size  (%.6f, %.6f)\n", gt[1], gt[5])
		bound := raster.Bounds(info)
		fmt.Printf("Bounds      (%.6f, %.6f) → (%.6f, %.6f)\n",
			bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y())
	} else {
		fmt.Println("Origin      (no geotransformation)")
	}

	if info.Projection != "" {
		fmt.Printf("Projection  %s\n", info.Projection)
	}
	if info.NoData != nil {
		fmt.Printf("NODATA      %g\n", *info.NoData)
	}
	return nil
}
