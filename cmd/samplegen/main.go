// Command samplegen writes the two demo Search Console exports the web
// command autoloads. Output is deterministic so regenerating the files
// never churns them.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
)

var queries = []string{
	"ai overview seo",
	"search console export",
	"what is ai overview",
	"click through rate benchmark",
	"how to improve ctr",
	"keyword cannibalization",
	"structured data faq",
	"google ranking factors",
	"organic traffic drop",
	"featured snippet optimization",
	"serp volatility today",
	"core web vitals report",
	"buy running shoes",
	"best trail shoes 2025",
	"shoe size conversion chart",
}

type site struct {
	file   string
	domain string
	seed   uint64
}

func main() {
	outDir := flag.String("out", ".", "directory to write sample CSVs into")
	rows := flag.Int("rows", 120, "data rows per file")
	flag.Parse()

	sites := []site{
		{file: "sample_data.csv", domain: "www.example.com", seed: 1},
		{file: "sample_data_domain2.csv", domain: "www.competitor.org", seed: 2},
	}

	for _, s := range sites {
		path := *outDir + "/" + s.file
		if err := writeSample(path, s, *rows); err != nil {
			slog.Error("failed to write sample file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("sample file written", "path", path, "rows", *rows)
	}
}

func writeSample(path string, s site, rows int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"query", "page", "clicks", "impressions", "ctr", "position", "ai_overview_clicks"}); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(s.seed, s.seed))
	for i := 0; i < rows; i++ {
		q := queries[i%len(queries)]
		page := fmt.Sprintf("https://%s/page-%d", s.domain, i%20)

		impressions := 50 + rng.IntN(5000)
		// CTR decays with position, loosely like real SERP curves.
		position := 1 + rng.Float64()*19
		ctr := 0.35 / position * (0.5 + rng.Float64())
		if ctr > 1 {
			ctr = 1
		}
		clicks := int(float64(impressions) * ctr)
		aiClicks := rng.IntN(clicks/2 + 1)

		record := []string{
			q,
			page,
			strconv.Itoa(clicks),
			strconv.Itoa(impressions),
			strconv.FormatFloat(ctr, 'f', 4, 64),
			strconv.FormatFloat(position, 'f', 1, 64),
			strconv.Itoa(aiClicks),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
