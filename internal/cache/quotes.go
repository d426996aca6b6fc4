package cache

import (
	"encoding/json"
	"strings"

	"padoca/internal"
	"padoca/internal/util"
)

// LoadQuotations reads the cached quotation list. An empty or missing value
// yields an empty list; corrupt JSON is treated the same (the remote store is
// still the system of record, losing the cache only costs a reload). Legacy
// records that predate the structured items array get a best-effort item list
// recovered from the stored email body.
func LoadQuotations(kv KV) ([]internal.Quotation, error) {
	blob, ok, err := kv.Get(QuotationsKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(blob) == "" {
		return nil, nil
	}

	var quotes []internal.Quotation
	if err := json.Unmarshal([]byte(blob), &quotes); err != nil {
		return nil, nil
	}

	for i := range quotes {
		if len(quotes[i].Items) == 0 {
			quotes[i].Items = RecoverItems(quotes[i].Body)
		}
	}
	return quotes, nil
}

// SaveQuotations writes the full list back. EncodeQuotations is split out so
// the send pipeline can snapshot the exact serialized state before an
// optimistic mutation and restore it byte for byte on rollback.
func SaveQuotations(kv KV, quotes []internal.Quotation) error {
	blob, err := EncodeQuotations(quotes)
	if err != nil {
		return err
	}
	return kv.Set(QuotationsKey, blob)
}

func EncodeQuotations(quotes []internal.Quotation) (string, error) {
	if quotes == nil {
		quotes = []internal.Quotation{}
	}
	blob, err := json.Marshal(quotes)
	if err != nil {
		return "", err
	}
	return string(blob), nil
}

// RecoverItems derives a line-item list from the bullet lines of a stored
// email body ("• Farinha: 50kg"). Lines whose quantity cannot be parsed keep
// the name only; a body with no parsable bullets yields no items.
func RecoverItems(body string) []internal.QuoteItem {
	var out []internal.QuoteItem
	for _, line := range strings.Split(body, "\n") {
		name, qty, unit, ok := util.ParseBulletLine(line)
		if !ok {
			continue
		}
		item := internal.QuoteItem{Name: name, Unit: unit}
		if qty != nil {
			item.QuantityToOrder = *qty
		}
		out = append(out, item)
	}
	return out
}
