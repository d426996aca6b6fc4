package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	unitPattern   = regexp.MustCompile(`(?i)\b(kg|g|l|lt|litro?s?|ml|un|und|unid\.?|cx|caixas?|sc|sacos?|fardos?|pct|pacotes?|d[uú]zias?)\b`)
	numberPattern = regexp.MustCompile(`(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	qtyWithUnit   = regexp.MustCompile(`(?i)(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(kg|g|l|lt|litro?s?|ml|un|und|unid\.?|cx|caixas?|sc|sacos?|fardos?|pct|pacotes?|d[uú]zias?)\b`)
	pricePattern  = regexp.MustCompile(`(?i)R?\$\s*(\d{1,3}(?:\.\d{3})*(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)

	// Legacy cache records keep their item list only inside the email body, one
	// bullet per line: "• Farinha: 50kg".
	bulletLine = regexp.MustCompile(`^\s*[•\-\*]\s*([^:]+?)\s*:\s*(\d+(?:[.,]\d+)?)\s*([A-Za-z]*)\s*$`)
	bulletName = regexp.MustCompile(`^\s*[•\-\*]\s*([^:]+?)\s*(?::.*)?$`)
)

type ParsedQty struct {
	Qty  *float64
	Unit *string
}

// ParseQty pulls the trailing quantity and unit out of a free-text line
// ("Farinha de trigo 50 kg" -> 50, kg).
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, " ", " ")

	qtyToken := ""
	if wm := qtyWithUnit.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		qtyToken = strings.TrimSpace(wm[len(wm)-1][1])
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		qtyToken = strings.TrimSpace(nm[len(nm)-1][1])
	}

	var qtyPtr *float64
	if qtyToken != "" {
		if parsed, err := strconv.ParseFloat(normalizeNumericToken(qtyToken), 64); err == nil {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		u := NormalizeUnit(um[1])
		unitPtr = &u
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr}
}

// ParsePrice extracts a monetary value in Brazilian or plain notation
// ("R$ 1.234,56", "$ 12.50", "R$12").
func ParsePrice(input string) *float64 {
	m := pricePattern.FindStringSubmatch(input)
	if len(m) < 2 {
		return nil
	}
	if parsed, err := strconv.ParseFloat(normalizeNumericToken(m[1]), 64); err == nil {
		return FloatPtr(parsed)
	}
	return nil
}

// ParseBulletLine parses one "• name: qty unit" body line. When the quantity
// cannot be parsed the name alone is returned.
func ParseBulletLine(line string) (name string, qty *float64, unit string, ok bool) {
	if m := bulletLine.FindStringSubmatch(line); len(m) == 4 {
		parsed, err := strconv.ParseFloat(normalizeNumericToken(m[2]), 64)
		if err == nil {
			return strings.TrimSpace(m[1]), FloatPtr(parsed), NormalizeUnit(m[3]), true
		}
	}
	if m := bulletName.FindStringSubmatch(line); len(m) == 2 {
		n := strings.TrimSpace(m[1])
		if n != "" {
			return n, nil, "", true
		}
	}
	return "", nil, "", false
}

func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(unit, ".")))
	switch u {
	case "un", "und", "unid", "unidade", "unidades":
		return "un"
	case "kg", "quilo", "quilos":
		return "kg"
	case "g", "grama", "gramas":
		return "g"
	case "l", "lt", "litro", "litros":
		return "l"
	case "ml":
		return "ml"
	case "cx", "caixa", "caixas":
		return "cx"
	case "sc", "saco", "sacos":
		return "sc"
	case "fardo", "fardos":
		return "fardo"
	case "pct", "pacote", "pacotes":
		return "pct"
	case "duzia", "dúzia", "duzias", "dúzias":
		return "dz"
	default:
		return u
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d+)?$`).MatchString(compact) {
		compact = strings.ReplaceAll(compact, ".", "")
		return strings.ReplaceAll(compact, ",", ".")
	}
	if regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`).MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
