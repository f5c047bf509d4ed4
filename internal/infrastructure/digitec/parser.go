package digitec

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/buywithme/assistant/internal/domain"
)

// Retailer names the shop products come from
const Retailer = "digitec"

const productLinkPrefix = "https://www.digitec.ch"

// brandNamePattern matches "**Brand** Product name"
var brandNamePattern = regexp.MustCompile(`^\*\*(.*?)\*\*(.*)$`)

// priceReplacer strips currency and formatting from a price line
var priceReplacer = strings.NewReplacer("CHF", "", ".–", "", "–", "", "'", "", " ", "")

// ParseListing extracts up to limit products from a markdown search page.
// Each product block starts with an empty-text link "[](https://www.digitec.ch/...)";
// the first "CHF" line is the price, the first "**Brand** name" line names the
// product and the first remaining text line is the specs summary. Blocks
// without a name or price are skipped.
func ParseListing(markdown string, limit int) []domain.Product {
	chunks := strings.Split(markdown, "[](")
	products := make([]domain.Product, 0)

	for _, chunk := range chunks[1:] {
		if len(products) >= limit {
			break
		}

		link, remainder, ok := strings.Cut(chunk, ")")
		if !ok {
			continue
		}
		link = strings.TrimSpace(link)
		if !strings.HasPrefix(link, productLinkPrefix) {
			continue
		}

		var priceRaw, brand, name, specs string
		for _, line := range strings.Split(remainder, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case priceRaw == "" && strings.HasPrefix(line, "CHF"):
				priceRaw = line
			case name == "" && strings.HasPrefix(line, "**"):
				brand, name = parseBrandAndName(line)
			case specs == "" &&
				!strings.HasPrefix(line, "![") &&
				!strings.HasPrefix(line, "CHF") &&
				!strings.HasPrefix(line, "**") &&
				!strings.Contains(strings.ToLower(line), "galaxus"):
				specs = line
			}
		}

		if name == "" || priceRaw == "" {
			continue
		}

		products = append(products, domain.Product{
			ProductID:    productID(link),
			Name:         name,
			Brand:        brand,
			PriceCHF:     ParsePrice(priceRaw),
			PriceRaw:     priceRaw,
			SpecsSummary: specs,
			Link:         link,
			Retailer:     Retailer,
		})
	}

	return products
}

// ParsePrice turns a price line such as "CHF 1'299.–" into 1299. Unparsable input gives 0.
func ParsePrice(raw string) float64 {
	normalized := strings.ReplaceAll(priceReplacer.Replace(raw), ",", ".")
	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0
	}
	return price
}

func parseBrandAndName(line string) (string, string) {
	m := brandNamePattern.FindStringSubmatch(line)
	if m == nil {
		return "", line
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

// productID is the last dash-separated segment of the product link
func productID(link string) string {
	trimmed := strings.TrimRight(link, "/")
	return trimmed[strings.LastIndex(trimmed, "-")+1:]
}
