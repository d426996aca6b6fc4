package replies

import (
	"strings"
	"testing"
)

func TestParseTextLinesPricedOnly(t *testing.T) {
	text := strings.Join([]string{
		"Bom dia!",
		"Farinha de Trigo 25kg: R$ 89,90",
		"Açúcar Cristal: R$ 120,00",
		"Atenciosamente,",
		"Tel: (11) 99999-0000",
	}, "\n")

	lines := parseTextLines(text, "text")
	if len(lines) != 2 {
		t.Fatalf("len=%d lines=%+v", len(lines), lines)
	}
	if lines[0].UnitPrice == nil || *lines[0].UnitPrice != 89.90 {
		t.Fatalf("price1 = %v", lines[0].UnitPrice)
	}
	if !strings.Contains(strings.ToLower(lines[0].Name), "farinha") {
		t.Fatalf("name1 = %q", lines[0].Name)
	}
	if lines[1].Available == nil || !*lines[1].Available {
		t.Fatalf("priced line should be marked available: %+v", lines[1])
	}
}

func TestParseTextLinesUnavailable(t *testing.T) {
	lines := parseTextLines("Fermento Biológico: em falta no momento", "text")
	if len(lines) != 1 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[0].Available == nil || *lines[0].Available {
		t.Fatalf("expected unavailable, got %+v", lines[0])
	}
	if lines[0].UnitPrice != nil {
		t.Fatalf("unexpected price: %v", *lines[0].UnitPrice)
	}
}

func TestParseHTMLTables(t *testing.T) {
	html := `<table>
<tr><th>Produto</th><th>Qtd</th><th>Preço Unit.</th><th>Disponibilidade</th></tr>
<tr><td>Farinha de Trigo 25kg</td><td>4</td><td>R$ 89,90</td><td>em estoque</td></tr>
<tr><td>Fermento Biológico</td><td>2</td><td>-</td><td>indisponível</td></tr>
</table>`

	lines := parseHTMLTables(html)
	if len(lines) != 2 {
		t.Fatalf("len=%d lines=%+v", len(lines), lines)
	}
	if lines[0].UnitPrice == nil || *lines[0].UnitPrice != 89.90 {
		t.Fatalf("price = %v", lines[0].UnitPrice)
	}
	if lines[0].Qty == nil || *lines[0].Qty != 4 {
		t.Fatalf("qty = %v", lines[0].Qty)
	}
	if lines[1].Available == nil || *lines[1].Available {
		t.Fatalf("second row should be unavailable: %+v", lines[1])
	}
}

func TestExtractReplyPlainMessage(t *testing.T) {
	raw := strings.Join([]string{
		"From: Moinho Anaconda <vendas@moinho.com.br>",
		"To: compras@padoca.com.br",
		"Subject: Re: Cotação de insumos",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Segue cotação:",
		"Farinha de Trigo 25kg: R$ 89,90",
		"Total: R$ 359,60",
	}, "\r\n")

	ex, err := ExtractReply([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if ex.Subject != "Re: Cotação de insumos" {
		t.Fatalf("subject = %q", ex.Subject)
	}
	if !strings.Contains(ex.Text, "R$ 359,60") {
		t.Fatalf("text lost: %q", ex.Text)
	}
	if len(ex.Lines) == 0 {
		t.Fatal("expected priced lines")
	}
}
