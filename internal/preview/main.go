// Package preview builds downscaled copies of a converted raster image,
// handy as map thumbnails. Sizes are fixed, output files are named
// preview_<size>.png.
package preview

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"golang.org/x/sync/semaphore"

	"github.com/gruppe-adler/dem2rgb/internal/utils"
)

var sizes = []uint{128, 256, 512, 1024}

// Run is the preview subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {
	inPtr := flagSet.String("in", "", "Path to converted PNG raster")
	outPtr := flagSet.String("out", "", "Path to output directory")

	flagSet.Parse(os.Args[2:])

	// make sure both flags are present
	if *inPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	// make sure given output directory is a valid directory
	if !utils.IsDirectory(*outPtr) {
		log.Fatal(errors.New("output directory doesn't exist"))
	}

	start := time.Now()

	timer := time.Now()
	fmt.Println("▶️  Loading image")

	file, err := os.Open(*inPtr)
	if err != nil {
		log.Fatal(err)
	}
	img, _, err := image.Decode(file)
	if err != nil {
		log.Fatal(err)
	}
	file.Close()

	fmt.Println("✔️  Loaded image in", time.Since(timer).String())

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	timer = time.Now()
	fmt.Println("▶️  Building preview images")

	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))
	wg := sync.WaitGroup{}
	for _, size := range sizes {
		wg.Add(1)
		go func(size uint) {
			defer wg.Done()
			sem.Acquire(context.Background(), 1)
			defer sem.Release(1)

			factor := float64(size) / float64(height)
			w := uint(float64(width) * factor)

			resized := resize.Resize(w, size, img, resize.MitchellNetravali)
			saveImage(path.Join(*outPtr, fmt.Sprintf("preview_%d.png", size)), resized)

			fmt.Printf("    ✔️  Built x%d preview\n", size)
		}(size)
	}
	wg.Wait()

	fmt.Println("✔️  Built preview images in", time.Since(timer).String())
	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
}

func saveImage(path string, img image.Image) {
	out, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(out, img); err != nil {
		log.Fatal(err)
	}
	if err := out.Close(); err != nil {
		log.Fatal(err)
	}
}
