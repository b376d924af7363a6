// Command scanimage runs the capture pipeline once over a single image file
// and prints the extraction as JSON. Useful for tuning the preprocessing
// thresholds against real shelf label photos.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"precoscan/pkg/scanner"

	"github.com/disintegration/imaging"
)

func main() {
	lang := flag.String("lang", "por", "tesseract language model")
	raw := flag.Bool("raw", false, "print the recognized text instead of the extraction")
	noCrop := flag.Bool("no-crop", false, "skip the region-of-interest crop")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scanimage [flags] <image>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	img, err := imaging.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open image: %v\n", err)
		os.Exit(1)
	}

	cfg := scanner.DefaultConfig()
	cfg.Language = *lang
	pre := scanner.NewPreprocessor(cfg)

	frame := img
	if !*noCrop {
		frame = pre.CropROI(img)
	}

	rec, err := scanner.NewTesseractRecognizer(cfg.Language)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init OCR: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()

	result, err := rec.Recognize(pre.Binarize(frame))
	if err != nil {
		fmt.Fprintf(os.Stderr, "recognize: %v\n", err)
		os.Exit(1)
	}
	if *raw {
		fmt.Printf("confidence: %.1f\n%s\n", result.Confidence, result.Text)
		return
	}

	product, err := scanner.NewExtractor(cfg).Extract(result.Text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no product: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(product, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
