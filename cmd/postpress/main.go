// cmd/postpress/main.go
//
// This is the entry point for the postpress CLI.
// Given a spreadsheet of recipients, it purchases USPS postage for each row,
// renders an accompanying note, merges label and note into one printable
// document and writes a reconciliation report.
//
// Flow:
// 1. Parse the four required flags and resolve configuration
// 2. Open the row source (fails fast, before any carrier call costs money)
// 3. Hand everything to the pipeline and run it

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kingrea/postpress/internal/artifact"
	"github.com/kingrea/postpress/internal/config"
	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/logging"
	"github.com/kingrea/postpress/internal/merge"
	"github.com/kingrea/postpress/internal/pipeline"
	"github.com/kingrea/postpress/internal/rows"
)

func main() {
	apiKey := flag.String("api-key", "", "EasyPost API key")
	fromAddressID := flag.String("from-address-id", "", "origin EasyPost address ID (adr_XXXX...)")
	parcelID := flag.String("parcel-id", "", "EasyPost parcel ID (prcl_XXXX...)")
	inputPath := flag.String("csv-path", "", "addresses and notes spreadsheet (CSV or XLSX)")
	flag.Parse()

	if *apiKey == "" {
		die("--api-key is required")
	}
	if *fromAddressID == "" {
		die("--from-address-id is required")
	}
	if *parcelID == "" {
		die("--parcel-id is required")
	}
	if *inputPath == "" {
		die("--csv-path is required")
	}

	workDir, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	cfg, err := config.New(workDir, *apiKey, *fromAddressID, *parcelID, *inputPath)
	if err != nil {
		die("load config: %v", err)
	}

	// Opening the source checks the input exists and carries the required
	// fields before a single carrier call is made.
	source, err := rows.Open(cfg.InputPath)
	if err != nil {
		die("open input: %v", err)
	}
	if err := cfg.EnsureOutputDirs(); err != nil {
		die("prepare output dirs: %v", err)
	}
	logbook, err := logging.New(cfg.LogPath())
	if err != nil {
		die("open run log: %v", err)
	}

	client := easypost.NewClient(cfg.APIKey, easypost.Options{
		BaseURL:        cfg.Run.Carrier.BaseURL,
		RequestTimeout: cfg.RequestTimeout(),
		LabelTimeout:   cfg.LabelTimeout(),
	})

	run := &pipeline.Pipeline{
		Carrier: client,
		Source:  source,
		Store:   artifact.NewStore(cfg.LabelsPath(), cfg.NotesPath(), cfg.ResultsPath()),
		Merger:  &merge.PDFJam{},
		Config:  cfg,
		Log:     logbook,
		Out:     os.Stdout,
	}
	if err := run.Run(context.Background()); err != nil {
		die("%v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
