package quote

import (
	"testing"

	"padoca/internal"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want internal.Status
	}{
		{raw: "enviado", want: internal.StatusPending},
		{raw: "sent", want: internal.StatusPending},
		{raw: "Aguardando_Resposta", want: internal.StatusAwaiting},
		{raw: "cotado", want: internal.StatusQuoted},
		{raw: "replied", want: internal.StatusQuoted},
		{raw: "pedido_criado", want: internal.StatusConfirmed},
		{raw: "entregue", want: internal.StatusDelivered},
		{raw: "status_que_nunca_existiu", want: internal.StatusPending},
		{raw: "", want: internal.StatusPending},
	}

	for _, tc := range cases {
		if got := MapStatus(tc.raw); got != tc.want {
			t.Fatalf("MapStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestMapStatusIdempotent(t *testing.T) {
	for _, s := range []internal.Status{internal.StatusPending, internal.StatusAwaiting, internal.StatusQuoted, internal.StatusConfirmed, internal.StatusDelivered} {
		if got := MapStatus(string(s)); got != s {
			t.Fatalf("MapStatus(%q) = %q, not idempotent", s, got)
		}
	}
}

func TestIsActive(t *testing.T) {
	if IsActive(internal.Quotation{Status: internal.StatusDelivered}) {
		t.Fatal("delivered must not be active")
	}
	if IsActive(internal.Quotation{Status: internal.StatusConfirmed, OrderID: "ord_1"}) {
		t.Fatal("confirmed with linked order must not be active")
	}
	if !IsActive(internal.Quotation{Status: internal.StatusConfirmed}) {
		t.Fatal("confirmed without order should still be active")
	}
	if !IsActive(internal.Quotation{Status: internal.StatusAwaiting}) {
		t.Fatal("awaiting should be active")
	}
}
