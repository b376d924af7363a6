package scanner

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PriceKind is the tier a price was printed under on the shelf label.
type PriceKind string

const (
	KindAtacado PriceKind = "atacado"     // bulk-purchase price
	KindVarejo  PriceKind = "varejo"      // standard retail price
	KindCredito PriceKind = "credito"     // card/installment price
	KindUnidade PriceKind = "unidade"     // per-unit price
	KindPromo   PriceKind = "promocional" // promotional price
	KindKg      PriceKind = "kg"          // per-weight price
	KindOutro   PriceKind = "outro"       // untagged decimal
)

// kindPriority is the tie-break order: the first surviving kind supplies the
// main price.
var kindPriority = map[PriceKind]int{
	KindVarejo:  0,
	KindAtacado: 1,
	KindCredito: 2,
	KindUnidade: 3,
	KindKg:      4,
	KindOutro:   5,
}

// PriceCandidate is one extracted (tier, amount) pair. Amounts are centavos.
type PriceCandidate struct {
	Kind   PriceKind `json:"kind"`
	Amount int64     `json:"amount"`
	Label  string    `json:"label"`
}

// Product is one successful extraction from a recognized label.
type Product struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Unit       string           `json:"unit,omitempty"`
	Prices     []PriceCandidate `json:"prices"`
	MainPrice  int64            `json:"main_price"` // centavos, == Prices[0].Amount unless overridden
	RawText    string           `json:"raw_text"`
	CapturedAt int64            `json:"captured_at"` // unix millis
	ScannedAt  string           `json:"scanned_at"`  // HH:MM wall-clock label
}

// PlaceholderName is used when no line of the label looks like a product name.
const PlaceholderName = "Produto não identificado"

const maxNameLen = 60

// Amount bounds in centavos. Values outside this band are never constructed.
const (
	minAmount = 50
	maxAmount = 100000
)

var (
	currencyMarkerRE = regexp.MustCompile(`(?i)R\s*\$|RS\s*\$|\$\s*\d`)
	decimalPriceRE   = regexp.MustCompile(`\d{1,4}[,.]\d{2}`)

	atacadoREs = []*regexp.Regexp{
		regexp.MustCompile(`ATACADO[^\d]{0,15}R?\$?\s*(\d{1,3})[,.](\d{2})`),
		regexp.MustCompile(`(\d{1,3})[,.](\d{2})[^\d]{0,10}ATACADO`),
	}
	varejoREs = []*regexp.Regexp{
		regexp.MustCompile(`VAREJO[^\d]{0,15}R?\$?\s*(\d{1,3})[,.](\d{2})`),
		regexp.MustCompile(`(\d{1,3})[,.](\d{2})[^\d]{0,10}VAREJO`),
		regexp.MustCompile(`AVULSO[^\d]{0,15}R?\$?\s*(\d{1,3})[,.](\d{2})`),
	}
	creditoRE = regexp.MustCompile(`(?:PASSAI|CREDI?|CARTAO|CARTÃO)[^\d]{0,15}R?\$?\s*(\d{1,3})[,.](\d{2})`)

	genericREs = []*regexp.Regexp{
		regexp.MustCompile(`R\s*\$\s*(\d{1,3})[,.](\d{2})`),
		regexp.MustCompile(`RS\s*(\d{1,3})[,.](\d{2})`),
	}
	// Bare decimal; the trailing group forbids a third decimal digit, which
	// Go's RE2 cannot express as a lookahead.
	bareDecimalRE = regexp.MustCompile(`(\d{1,3}),(\d{2})(?:[^\d]|$)`)

	unitRE = regexp.MustCompile(`(?i)(\d+)\s*(G|KG|ML|L|UN)\b`)

	onlyPriceCharsRE = regexp.MustCompile(`^[R$\d\s,.]+$`)
	nonProductRE     = regexp.MustCompile(`(?i)^(PRECO|PREÇO|ATACADO|VAREJO|CRED|PASSAI|CX\d|AM\d|FD\d|LJ\s*\d)`)
	nameCleanRE      = regexp.MustCompile(`[^a-zA-ZÀ-ÿ0-9\s]`)
)

// productKeywords are common grocery terms; the first label line containing
// one becomes the product name.
var productKeywords = []string{
	"CAFE", "CAFÉ", "ARROZ", "FEIJAO", "FEIJÃO", "AÇUCAR", "ACUCAR",
	"OLEO", "ÓLEO", "LEITE", "CARNE", "FRANGO", "TRADICIONAL", "EXTRA FORTE",
	"POUCH", "ALMOF", "CORACOES", "CORAÇÕES", "PILAO", "PILÃO", "MELITTA",
	"SABAO", "SABÃO", "DETERGENTE", "MACARRAO", "MACARRÃO", "BISCOITO",
	"BOLACHA", "REFRIGERANTE", "SUCO", "AGUA", "ÁGUA", "INTEGRAL",
	"DESNATADO", "FARINHA", "SAL", "MARGARINA", "MANTEIGA", "QUEIJO",
	"PRESUNTO", "MORTADELA", "SALSICHA", "LINGUICA", "BACON",
}

// Extractor turns raw recognized text into a structured product. The
// parsing grammar is locale-bound (Brazilian comma-decimal price tags) and
// deliberately isolated here so it can be swapped without touching the
// scheduler or the session.
type Extractor struct {
	cfg Config
	now func() time.Time
}

func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg, now: time.Now}
}

// Extract parses one OCR result. It returns ErrNoExtraction when the text
// fails the validity gates or yields no in-band price candidate.
func (e *Extractor) Extract(raw string) (*Product, error) {
	if len(raw) < e.cfg.MinTextLen || len(raw) > e.cfg.MaxTextLen {
		return nil, ErrNoExtraction
	}
	repaired := fixDigitConfusions(raw)
	if !currencyMarkerRE.MatchString(repaired) && !decimalPriceRE.MatchString(repaired) {
		return nil, ErrNoExtraction
	}

	lines := splitLines(raw)
	fullText := strings.ToUpper(strings.Join(splitLines(repaired), " "))

	prices := e.extractPrices(fullText)
	if len(prices) == 0 {
		return nil, ErrNoExtraction
	}
	sort.SliceStable(prices, func(i, j int) bool {
		pi, pj := kindPriority[prices[i].Kind], kindPriority[prices[j].Kind]
		if pi != pj {
			return pi < pj
		}
		return prices[i].Amount < prices[j].Amount
	})

	name := extractName(lines)
	unit := ""
	if m := unitRE.FindStringSubmatch(fullText); m != nil {
		unit = m[1] + strings.ToLower(m[2])
	}

	now := e.now()
	return &Product{
		ID:         "prod-" + uuid.NewString(),
		Name:       name,
		Unit:       unit,
		Prices:     prices,
		MainPrice:  prices[0].Amount,
		RawText:    snippet(raw, 300),
		CapturedAt: now.UnixMilli(),
		ScannedAt:  now.Format("15:04"),
	}, nil
}

// extractPrices runs the labeled passes in priority order, then the generic
// currency pass, then the bare-decimal fallback. Candidates are deduplicated
// by kind+amount and rejected outside the plausible band.
func (e *Extractor) extractPrices(fullText string) []PriceCandidate {
	var prices []PriceCandidate
	seen := map[string]struct{}{}
	add := func(kind PriceKind, amount int64, label string) {
		if amount < minAmount || amount >= maxAmount {
			return
		}
		key := fmt.Sprintf("%s-%d", kind, amount)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		prices = append(prices, PriceCandidate{Kind: kind, Amount: amount, Label: label})
	}

	for _, re := range atacadoREs {
		for _, m := range re.FindAllStringSubmatch(fullText, -1) {
			add(KindAtacado, centavos(m[1], m[2]), "Atacado")
		}
	}
	for _, re := range varejoREs {
		for _, m := range re.FindAllStringSubmatch(fullText, -1) {
			add(KindVarejo, centavos(m[1], m[2]), "Varejo")
		}
	}
	for _, m := range creditoRE.FindAllStringSubmatch(fullText, -1) {
		add(KindCredito, centavos(m[1], m[2]), "Crediário")
	}

	// A currency-marked price with no tier label is treated as retail.
	if len(prices) == 0 {
		for _, re := range genericREs {
			for _, m := range re.FindAllStringSubmatch(fullText, -1) {
				add(KindVarejo, centavos(m[1], m[2]), "Preço")
			}
		}
	}

	// Last resort: up to two bare decimals of at least 1.00.
	if len(prices) == 0 {
		count := 0
		for _, m := range bareDecimalRE.FindAllStringSubmatch(fullText, -1) {
			if count >= 2 {
				break
			}
			amt := centavos(m[1], m[2])
			if amt >= 100 {
				add(KindOutro, amt, "Preço")
				count++
			}
		}
	}
	return prices
}

// extractName scans label lines for a grocery keyword, then falls back to
// the first line that is not a price, a tier label or a shelf code.
func extractName(lines []string) string {
	name := ""
	for _, line := range lines {
		upper := strings.ToUpper(line)
		for _, kw := range productKeywords {
			if strings.Contains(upper, kw) {
				name = cleanName(line)
				break
			}
		}
		if name != "" {
			break
		}
	}
	if name == "" {
		for _, line := range lines {
			if len(line) > 4 && !onlyPriceCharsRE.MatchString(line) && !nonProductRE.MatchString(line) {
				name = cleanName(line)
				break
			}
		}
	}
	if len([]rune(name)) < 3 {
		return PlaceholderName
	}
	return truncateRunes(name, maxNameLen)
}

func cleanName(line string) string {
	cleaned := nameCleanRE.ReplaceAllString(line, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// centavos builds an amount from matched reais and cents digit groups.
func centavos(reais, cents string) int64 {
	r, err := strconv.ParseInt(reais, 10, 64)
	if err != nil {
		return 0
	}
	c, err := strconv.ParseInt(cents, 10, 64)
	if err != nil {
		return 0
	}
	return r*100 + c
}

// FormatCentavos renders an amount the way it is printed on a tag.
func FormatCentavos(amount int64) string {
	return fmt.Sprintf("R$ %d,%02d", amount/100, amount%100)
}
