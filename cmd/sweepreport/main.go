// sweepreport renders the report artifacts for an existing results CSV, for
// rigs where the sweep box and the analysis box are different machines.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/harmonia-data/patchsweep/internal/report"
	"github.com/harmonia-data/patchsweep/internal/results"
)

func main() {
	var csvPath string
	var outDir string
	var threshold float64

	flag.StringVar(&csvPath, "csv", "sweep_results.csv", "results CSV to report on")
	flag.StringVar(&outDir, "out-dir", "", "artifact directory (default: alongside the CSV)")
	flag.Float64Var(&threshold, "silence-threshold", 0.01, "threshold line drawn on the level chart")
	flag.Parse()

	rows, err := results.ReadAll(csvPath)
	if err != nil {
		log.Fatalf("read results: %v", err)
	}
	if len(rows) == 0 {
		log.Fatalf("no result rows in %s", csvPath)
	}

	if outDir == "" {
		outDir = filepath.Dir(csvPath)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	fmt.Println(report.Summarize(rows))

	if err := report.WriteArtifacts(outDir, rows, threshold); err != nil {
		log.Fatalf("write artifacts: %v", err)
	}
	fmt.Printf("wrote %s and %s in %s\n", report.HTMLName, report.PNGName, outDir)
}
