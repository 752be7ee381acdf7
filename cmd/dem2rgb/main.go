package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gruppe-adler/dem2rgb/internal/convert"
	"github.com/gruppe-adler/dem2rgb/internal/info"
	"github.com/gruppe-adler/dem2rgb/internal/preview"
	"github.com/gruppe-adler/dem2rgb/internal/raster"

	// raster format drivers
	_ "github.com/gruppe-adler/dem2rgb/internal/aaigrid"
	_ "github.com/gruppe-adler/dem2rgb/internal/envi"
	_ "github.com/gruppe-adler/dem2rgb/internal/pngout"
)

type command struct {
	name        string
	description string
	run         func(*flag.FlagSet)
}

var subCommands []command

func init() {
	subCommands = []command{
		{"convert", "Convert an elevation raster to a Terrain-RGB coded raster.", convert.Run},
		{"info", "Print metadata of an elevation raster.", info.Run},
		{"preview", "Build downscaled preview images from a converted raster.", preview.Run},
		{"formats", "List supported raster formats.", func(s *flag.FlagSet) { printFormats() }},
		{"help", "Print this message.", func(s *flag.FlagSet) { printUsage() }},
	}
}

func printUsage() {
	fmt.Printf("USAGE:\n    %s [SUBCOMMAND] [SUBCOMMAND FLAGS]\n\n", os.Args[0])
	fmt.Print("SUBCOMMANDS: \n")

	for i := 0; i < len(subCommands); i++ {
		name := subCommands[i].name

		fmt.Printf("%12s    %s\n", name, subCommands[i].description)
	}

	fmt.Printf("\nUse -h as SUBCOMMAND FLAG to print help for each subcommand.\n\n")
}

func printFormats() {
	fmt.Printf("Source formats: %s\n", strings.Join(raster.SourceFormats(), ", "))
	fmt.Printf("Output formats: %s\n", strings.Join(raster.SinkFormats(), ", "))
}

func main() {

	if len(os.Args) < 2 {
		fmt.Printf("\nERROR: No subcommand was provided.\n\n")
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	for i := 0; i < len(subCommands); i++ {
		if subCommands[i].name == cmd {
			set := flag.NewFlagSet(cmd, flag.ExitOnError)
			subCommands[i].run(set)
			return
		}
	}

	fmt.Printf("\nERROR: Subcommand '%s' was not found.\n\n", cmd)
	printUsage()
	os.Exit(1)
}
