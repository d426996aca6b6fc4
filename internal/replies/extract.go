package replies

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"padoca/internal/util"
)

// PricedLine is one candidate quotation line recovered from a reply body or
// attachment. Name matching back to the quotation's items happens later.
type PricedLine struct {
	Name      string
	Qty       *float64
	Unit      string
	UnitPrice *float64
	Available *bool
	Source    string
	Raw       string
}

type Extraction struct {
	Subject     string
	Text        string
	Lines       []PricedLine
	Attachments []string
}

var (
	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^--+$`),
		regexp.MustCompile(`(?i)^atenciosamente`),
		regexp.MustCompile(`(?i)^att\.?,?$`),
		regexp.MustCompile(`(?i)^obrigad[oa]`),
		regexp.MustCompile(`(?i)^abra[çc]os?`),
		regexp.MustCompile(`(?i)^tel[:\s]`),
		regexp.MustCompile(`(?i)^e-?mail[:\s]`),
		regexp.MustCompile(`(?i)^https?://`),
	}

	unavailableWords = []string{"indisponível", "indisponivel", "em falta", "sem estoque", "fora de linha"}
	spacesPattern    = regexp.MustCompile(`\s+`)
	lettersPattern   = regexp.MustCompile(`[A-Za-zÀ-ÿ]`)
)

// ExtractReply parses the raw RFC822 message: plain text line by line, HTML
// tables, and XLSX/PDF attachments. The returned Text includes rendered
// attachment lines so a downstream analyzer sees the whole reply.
func ExtractReply(raw []byte) (Extraction, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Extraction{}, err
	}

	out := Extraction{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
	}

	if env.Text != "" {
		out.Lines = append(out.Lines, parseTextLines(env.Text, "text")...)
	}
	if env.HTML != "" {
		out.Lines = append(out.Lines, parseHTMLTables(env.HTML)...)
	}

	var attachmentText strings.Builder
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "anexo"
		}
		out.Attachments = append(out.Attachments, filename)

		var extra []PricedLine
		lower := strings.ToLower(filename)
		switch {
		case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
			extra, _ = parseXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, _ = parsePDF(att.Content)
		}
		for _, line := range extra {
			out.Lines = append(out.Lines, line)
			fmt.Fprintf(&attachmentText, "%s\n", line.Raw)
		}
	}
	if attachmentText.Len() > 0 {
		out.Text = strings.TrimSpace(out.Text + "\n\n" + attachmentText.String())
	}

	out.Lines = dedupeLines(out.Lines)
	return out, nil
}

func parseTextLines(text, source string) []PricedLine {
	out := []PricedLine{}
	for _, raw := range splitLines(text) {
		line := lineToPricedLine(raw, source)
		if line == nil {
			continue
		}
		out = append(out, *line)
	}
	return out
}

// lineToPricedLine keeps only lines that look like quotation content: a name
// with a price, or a name with an availability remark.
func lineToPricedLine(raw, source string) *PricedLine {
	compact := normalizeSpaces(raw)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}
	if !lettersPattern.MatchString(compact) {
		return nil
	}

	price := util.ParsePrice(compact)
	unavailable := containsUnavailable(compact)
	if price == nil && !unavailable {
		return nil
	}

	name := compact
	if idx := strings.Index(name, ":"); idx > 0 {
		name = name[:idx]
	}
	parsed := util.ParseQty(name)
	name = normalizeSpaces(stripNumbersAndUnits(name))
	if name == "" {
		return nil
	}

	line := PricedLine{
		Name:      name,
		Qty:       parsed.Qty,
		UnitPrice: price,
		Source:    source,
		Raw:       compact,
	}
	if parsed.Unit != nil {
		line.Unit = *parsed.Unit
	}
	if unavailable {
		line.Available = util.BoolPtr(false)
	} else if price != nil {
		line.Available = util.BoolPtr(true)
	}
	return &line
}

func parseHTMLTables(html string) []PricedLine {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []PricedLine{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(strings.TrimSpace(cell.Text())))
		})

		nameIdx := findHeaderIndex(headers, []string{"produto", "item", "descri", "mercadoria", "name"})
		priceIdx := findHeaderIndex(headers, []string{"preço", "preco", "valor", "unit"})
		qtyIdx := findHeaderIndex(headers, []string{"qtd", "quant", "qty"})
		availIdx := findHeaderIndex(headers, []string{"disponib", "estoque", "situa"})

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			name := pickCell(cells, nameIdx, 0)
			if strings.TrimSpace(name) == "" {
				return
			}

			line := PricedLine{
				Name:   name,
				Source: "html",
				Raw:    strings.Join(cells, " | "),
			}
			if priceCell := pickCell(cells, priceIdx, -1); priceCell != "" {
				line.UnitPrice = util.ParsePrice(priceCell)
				if line.UnitPrice == nil {
					line.UnitPrice = parseBareNumber(priceCell)
				}
			}
			if qtyCell := pickCell(cells, qtyIdx, -1); qtyCell != "" {
				parsed := util.ParseQty(qtyCell)
				line.Qty = parsed.Qty
				if parsed.Unit != nil {
					line.Unit = *parsed.Unit
				}
			}
			availCell := pickCell(cells, availIdx, -1)
			if containsUnavailable(line.Raw) || containsUnavailable(availCell) {
				line.Available = util.BoolPtr(false)
			} else if line.UnitPrice != nil {
				line.Available = util.BoolPtr(true)
			}

			if line.UnitPrice == nil && line.Available == nil {
				return
			}
			out = append(out, line)
		})
	})

	return out
}

func parseXLSX(content []byte) ([]PricedLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []PricedLine{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		nameIdx, priceIdx, qtyIdx := -1, -1, -1
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && nameIdx < 0 {
				nameIdx = findHeaderIndex(lowered(cells), []string{"produto", "item", "descri", "name"})
				priceIdx = findHeaderIndex(lowered(cells), []string{"preço", "preco", "valor", "unit"})
				qtyIdx = findHeaderIndex(lowered(cells), []string{"qtd", "quant", "qty"})
				if nameIdx >= 0 || priceIdx >= 0 {
					continue
				}
			}
			if nameIdx < 0 {
				nameIdx, qtyIdx, priceIdx = 0, 1, 2
			}

			name := pickCell(cells, nameIdx, 0)
			if strings.TrimSpace(name) == "" {
				continue
			}

			line := PricedLine{
				Name:   name,
				Source: "xlsx",
				Raw:    strings.Join(cells, " | "),
			}
			if priceCell := pickCell(cells, priceIdx, -1); priceCell != "" {
				line.UnitPrice = util.ParsePrice(priceCell)
				if line.UnitPrice == nil {
					line.UnitPrice = parseBareNumber(priceCell)
				}
			}
			if qtyCell := pickCell(cells, qtyIdx, -1); qtyCell != "" {
				line.Qty = util.ParseQty(qtyCell).Qty
			}
			if containsUnavailable(line.Raw) {
				line.Available = util.BoolPtr(false)
			} else if line.UnitPrice != nil {
				line.Available = util.BoolPtr(true)
			}
			if line.UnitPrice == nil && line.Available == nil {
				continue
			}
			out = append(out, line)
		}
	}

	return out, nil
}

func parsePDF(content []byte) ([]PricedLine, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []PricedLine{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, raw := range splitLines(text) {
			line := lineToPricedLine(raw, "pdf")
			if line == nil {
				continue
			}
			out = append(out, *line)
		}
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(spacesPattern.ReplaceAllString(input, " "))
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func containsUnavailable(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range unavailableWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var qtyUnitToken = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(kg|g|l|lt|ml|un|und|cx|sc|pct|fardos?|d[uú]zias?)?\b`)

func stripNumbersAndUnits(name string) string {
	return qtyUnitToken.ReplaceAllString(name, " ")
}

var bareNumber = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// parseBareNumber handles price cells without a currency sign ("89,90").
func parseBareNumber(cell string) *float64 {
	m := bareNumber.FindString(cell)
	if m == "" {
		return nil
	}
	return util.ParsePrice("R$ " + m)
}

func dedupeLines(lines []PricedLine) []PricedLine {
	seen := map[string]struct{}{}
	out := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		key := line.Source + "|" + line.Raw
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func lowered(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, strings.ToLower(c))
	}
	return out
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}
