// Debug tool to test Wayback CDX fetching and interstitial resolution directly
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/wayback-scraper/internal/api"
	"github.com/thesavant42/wayback-scraper/internal/scraper"
)

func main() {
	domain := "raspberrypi.com"
	if len(os.Args) > 1 {
		domain = os.Args[1]
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
	})

	opts := api.DefaultClientOptions()
	ctx := context.Background()

	fmt.Printf("Testing CDX fetch for domain: %s\n", domain)
	fmt.Printf("Query: %s\n", api.BuildCDXQuery(domain, "", opts.CollapseDigits))

	client := api.NewWaybackClient(opts, logger)

	fmt.Println("\n--- Fetching snapshots ---")
	candidates, err := client.FetchSnapshots(ctx, domain, "")
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Candidates: %d\n", len(candidates))

	// Show first 3 records
	fmt.Println("\nFirst records:")
	for i, c := range candidates {
		if i >= 3 {
			fmt.Printf("  ... and %d more\n", len(candidates)-3)
			break
		}
		fmt.Printf("  %d. %s (status: %s)\n", i+1, c.RawPath, c.StatusCode)
	}

	// Resolve either the given snapshot URL or the first redirect capture
	target := ""
	if len(os.Args) > 2 {
		target = os.Args[2]
	} else {
		for _, c := range candidates {
			if scraper.IsRedirectStatus(c.StatusCode) {
				target = client.ReplayURL() + c.RawPath + "/" + domain
				break
			}
		}
	}
	if target == "" {
		fmt.Println("\nNo redirect captures to resolve")
		return
	}

	fmt.Printf("\n--- Resolving %s ---\n", target)
	resolver := scraper.NewResolver(client, scraper.GoqueryMarkerParser{}, scraper.DefaultMaxDepth, logger)
	res, err := resolver.Resolve(ctx, target)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	for i, hop := range res.Chain {
		fmt.Printf("  %d. %s\n", i+1, hop)
	}
	fmt.Printf("Final: %s\n", res.FinalURL)
	fmt.Printf("Redirected: %v  Recursive: %v\n", res.Redirected, res.Recursive)
}
