// Command atlasdemo renders a line of text through the texture atlas
// pipeline with the software backend and saves the result as a PNG.
// With -inspect it also dumps the atlas occupancy to stderr.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/rhcher/contour"
	"github.com/rhcher/contour/atlas"
	"github.com/rhcher/contour/backend/softpix"
	"github.com/rhcher/contour/glyphs"
)

func main() {
	var (
		text     = flag.String("text", "The quick brown fox jumps over the lazy dog", "text to render")
		fontSize = flag.Float64("size", 14, "font size in pixels")
		output   = flag.String("output", "atlasdemo.png", "output file")
		inspect  = flag.Bool("inspect", false, "dump atlas occupancy to stderr")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		contour.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cell := atlas.Size{Width: uint32(*fontSize * 0.6), Height: uint32(*fontSize * 1.3)}
	target := image.NewRGBA(image.Rect(0, 0, (len(*text)+2)*int(cell.Width), 3*int(cell.Height)))

	var alloc atlas.DirectMappingAllocator
	alloc.Enabled = true
	direct := alloc.Allocate(glyphs.DirectMappingSlots)

	backend := softpix.New(target)
	a, err := atlas.New[glyphs.Metadata](backend, atlas.Properties{
		Format:             atlas.FormatRed,
		TileSize:           cell,
		TileCount:          1024,
		DirectMappingCount: alloc.Allocated(),
	})
	if err != nil {
		log.Fatalf("Failed to create atlas: %v", err)
	}

	renderer, err := glyphs.NewRenderer(goregular.TTF, *fontSize, a, direct)
	if err != nil {
		log.Fatalf("Failed to create glyph renderer: %v", err)
	}

	x, y := int(cell.Width), int(cell.Height)
	color := atlas.NormalizeRGB(230, 230, 230, 1)
	for _, ch := range *text {
		renderer.Draw(x, y, ch, color)
		x += int(cell.Width)
		if renderer.IsWide(ch) {
			x += int(cell.Width)
		}
	}

	if *inspect {
		a.Inspect(os.Stderr)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	defer f.Close()
	if err := png.Encode(f, target); err != nil {
		log.Fatalf("Failed to encode PNG: %v", err)
	}

	uploads, renders := backend.Stats()
	log.Printf("Rendered %q to %s (%d uploads, %d draws)", *text, *output, uploads, renders)
}
