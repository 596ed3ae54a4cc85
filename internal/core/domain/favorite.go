package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FavoriteEntry struct {
	FavoriteID string          `json:"favorite_id"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ImageRef   string          `json:"image_ref,omitempty"`
}

type Favorites struct {
	Entries   []FavoriteEntry `json:"entries"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func (f Favorites) Find(productID string) (FavoriteEntry, bool) {
	for _, e := range f.Entries {
		if e.ProductID == productID {
			return e, true
		}
	}
	return FavoriteEntry{}, false
}

func (f Favorites) Contains(productID string) bool {
	_, ok := f.Find(productID)
	return ok
}

func (f Favorites) Clone() Favorites {
	entries := make([]FavoriteEntry, len(f.Entries))
	copy(entries, f.Entries)
	return Favorites{Entries: entries, FetchedAt: f.FetchedAt}
}
