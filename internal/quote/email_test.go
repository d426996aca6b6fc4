package quote

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "Maria <maria@fornecedorx.com>", want: "maria@fornecedorx.com"},
		{in: "  COMPRAS@FornecedorX.com ", want: "compras@fornecedorx.com"},
		{in: "vendas@moinho.com.br", want: "vendas@moinho.com.br"},
	}
	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEmailsRelated(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "exact", a: "compras@fornecedorx.com", b: "compras@fornecedorx.com", want: true},
		{name: "display name wrapper", a: "compras@fornecedorx.com", b: "Maria <maria@fornecedorx.com>", want: true},
		{name: "same domain", a: "compras@fornecedorx.com", b: "maria@fornecedorx.com", want: true},
		{name: "substring", a: "vendas@moinho.com", b: "vendas@moinho.com.br", want: true},
		{name: "unrelated", a: "compras@fornecedorx.com", b: "vendas@moinho.com.br", want: false},
		{name: "empty side", a: "", b: "vendas@moinho.com.br", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EmailsRelated(tc.a, tc.b); got != tc.want {
				t.Fatalf("EmailsRelated(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
