package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"govsort/domain"
	"govsort/filter"
	"govsort/headers"
	"govsort/scanner"
	"govsort/stats"
)

var (
	reportDir     string
	topN          int
	govSuffixFlag string
	includeHeader []string
	includeBody   []string
	excludeHeader []string
	excludeBody   []string
)

var domainsCmd = &cobra.Command{
	Use:   "domains [scan root]",
	Short: "Analyse the email tree and show domain statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		fmt.Println("Analyzing email tree:", root)

		includeActive := len(includeHeader) > 0 || len(includeBody) > 0
		excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
		if includeActive && excludeActive {
			return fmt.Errorf("include and exclude flags are mutually exclusive")
		}

		f, err := filter.New(filter.Options{
			IncludeHeader: includeHeader,
			IncludeBody:   includeBody,
			ExcludeHeader: excludeHeader,
			ExcludeBody:   excludeBody,
		})
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		counter := make(map[string]map[string]int)
		categories := []string{"From", "To", "CC", "Government"}
		for _, c := range categories {
			counter[c] = make(map[string]int)
		}

		extractor := headers.NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
		suffix := strings.ToLower(govSuffixFlag)

		fileCount := 0
		skippedCount := 0
		printStats := func() {
			// ANSI escape code to clear screen and move cursor to top-left
			fmt.Print("\033[H\033[2J")
			total := fileCount + skippedCount
			var filterPercent float64
			if total > 0 {
				filterPercent = float64(skippedCount) / float64(total) * 100
			}
			fmt.Printf("Processed %d files (skipped %d by filters, %.2f%%)...\n\n", fileCount, skippedCount, filterPercent)

			for _, category := range categories {
				fmt.Printf("Top %d %s domains:\n", topN, category)
				stats.PrettyPrintTop(counter[category], topN)
				fmt.Println()
			}
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !scanner.IsCandidate(d.Name()) {
				return nil
			}

			rec, err := extractor.Extract(path)
			if err != nil || !rec.Any() {
				return nil
			}

			if f.Active() {
				raw, readErr := os.ReadFile(path)
				if readErr != nil {
					return nil
				}
				if !f.Allows(rec, raw) {
					skippedCount++
					return nil
				}
			}

			fileCount++
			tally(counter, rec.From, rec.To, rec.CC, suffix)

			if fileCount%250 == 0 {
				printStats()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("error scanning email tree: %w", err)
		}

		printStats()

		if err := saveCSVReports(counter, categories, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("\nReports saved to directory: %s\n", reportDir)

		return nil
	},
}

func init() {
	domainsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	domainsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	domainsCmd.Flags().StringVar(&govSuffixFlag, "gov-suffix", domain.DefaultGovSuffix, "Domain suffix counted as a government domain")
	domainsCmd.Flags().StringArrayVar(&includeHeader, "include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	domainsCmd.Flags().StringArrayVar(&includeBody, "include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	domainsCmd.Flags().StringArrayVar(&excludeHeader, "exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	domainsCmd.Flags().StringArrayVar(&excludeBody, "exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
	rootCmd.AddCommand(domainsCmd)
}

// tally counts each address list's domains into its category and keeps a
// combined count of government domains across all headers.
func tally(counter map[string]map[string]int, from, to, cc, suffix string) {
	count := func(category, list string) {
		for _, addr := range strings.Split(list, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			dom := domain.AddressDomain(addr)
			if dom == domain.Unknown {
				continue
			}
			counter[category][dom]++
			if strings.HasSuffix(dom, suffix) {
				counter["Government"][dom]++
			}
		}
	}
	count("From", from)
	count("To", to)
	count("CC", cc)
}

func saveCSVReports(counter map[string]map[string]int, categories []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, category := range categories {
		counts := counter[category]

		filename := fmt.Sprintf("report_%s.csv", strings.ToLower(category))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Domain", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].Value != pairs[j].Value {
				return pairs[i].Value > pairs[j].Value
			}
			return pairs[i].Key < pairs[j].Key
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}
