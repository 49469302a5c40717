package processor

import (
	"math"
	"regexp"
	"strings"

	"mufashe-rag/internal/models"
)

const (
	// DefaultTopN is the number of leading lines per page considered for header detection
	DefaultTopN = 3
	// DefaultBottomN is the number of trailing lines per page considered for footer detection
	DefaultBottomN = 3
	// DefaultMinRepeatRatio is the share of pages a line must repeat on to count as boilerplate
	DefaultMinRepeatRatio = 0.6
	// DefaultMinLineLength guards against short coincidental repeats such as numerals
	DefaultMinLineLength = 6
)

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	pageNumberRe = regexp.MustCompile(`(?i)^page\s*\d+$`)
	pageRatioRe  = regexp.MustCompile(`(?i)^\d+\s*/\s*\d+$`)
	manyNewlines = regexp.MustCompile(`\n{3,}`)
)

// BoilerplateOptions tunes header/footer detection
type BoilerplateOptions struct {
	TopN           int     `yaml:"top_n"`
	BottomN        int     `yaml:"bottom_n"`
	MinRepeatRatio float64 `yaml:"min_repeat_ratio"`
	MinLineLength  int     `yaml:"min_line_length"`
}

// DefaultBoilerplateOptions returns the detection thresholds used for legal PDFs
func DefaultBoilerplateOptions() BoilerplateOptions {
	return BoilerplateOptions{
		TopN:           DefaultTopN,
		BottomN:        DefaultBottomN,
		MinRepeatRatio: DefaultMinRepeatRatio,
		MinLineLength:  DefaultMinLineLength,
	}
}

func (o BoilerplateOptions) withDefaults() BoilerplateOptions {
	d := DefaultBoilerplateOptions()
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.BottomN <= 0 {
		o.BottomN = d.BottomN
	}
	if o.MinRepeatRatio <= 0 {
		o.MinRepeatRatio = d.MinRepeatRatio
	}
	if o.MinLineLength <= 0 {
		o.MinLineLength = d.MinLineLength
	}
	return o
}

// NormalizeLines splits raw page text into lines with whitespace collapsed, dropping empty lines
func NormalizeLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DetectBoilerplate finds lines repeated at the top or bottom of enough pages to be
// headers or footers. It does no I/O and keeps no state.
func DetectBoilerplate(pagesLines [][]string, opts BoilerplateOptions) models.HeaderFooterSet {
	opts = opts.withDefaults()

	headerCounts := make(map[string]int)
	footerCounts := make(map[string]int)

	for _, lines := range pagesLines {
		if len(lines) == 0 {
			continue
		}
		for _, line := range lines[:min(opts.TopN, len(lines))] {
			headerCounts[line]++
		}
		for _, line := range lines[max(0, len(lines)-opts.BottomN):] {
			footerCounts[line]++
		}
	}

	pageCount := max(1, len(pagesLines))
	threshold := int(math.Ceil(float64(pageCount) * opts.MinRepeatRatio))

	return models.HeaderFooterSet{
		Headers: selectRepeated(headerCounts, threshold, opts.MinLineLength),
		Footers: selectRepeated(footerCounts, threshold, opts.MinLineLength),
	}
}

func selectRepeated(counts map[string]int, threshold, minLength int) map[string]struct{} {
	set := make(map[string]struct{})
	for line, count := range counts {
		if count >= threshold && len([]rune(line)) >= minLength {
			set[line] = struct{}{}
		}
	}
	return set
}

// isPageNumber matches bare page markers like "Page 12" or "3 / 40"
func isPageNumber(line string) bool {
	return pageNumberRe.MatchString(line) || pageRatioRe.MatchString(line)
}

// Normalizer turns raw per-page text into one cleaned document string
type Normalizer struct {
	Options BoilerplateOptions
}

// NewNormalizer creates a normalizer with the given detection options
func NewNormalizer(opts BoilerplateOptions) *Normalizer {
	return &Normalizer{Options: opts.withDefaults()}
}

// Normalize cleans the pages of one document. Zero pages yield an empty string.
func (n *Normalizer) Normalize(pages []string) string {
	text, _ := n.NormalizeWithBoilerplate(pages)
	return text
}

// NormalizeWithBoilerplate cleans the pages and also returns the detected header/footer set
func (n *Normalizer) NormalizeWithBoilerplate(pages []string) (string, models.HeaderFooterSet) {
	pagesLines := make([][]string, len(pages))
	for i, page := range pages {
		pagesLines[i] = NormalizeLines(page)
	}

	boilerplate := DetectBoilerplate(pagesLines, n.Options)

	var cleanedPages []string
	for _, lines := range pagesLines {
		var kept []string
		for _, line := range lines {
			if boilerplate.Contains(line) || isPageNumber(line) {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			cleanedPages = append(cleanedPages, strings.Join(kept, "\n"))
		}
	}

	text := strings.Join(cleanedPages, "\n\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), boilerplate
}
