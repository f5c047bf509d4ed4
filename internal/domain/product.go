package domain

import "time"

// Product represents a listing scraped from a retailer search page
type Product struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	PriceCHF     float64 `json:"price_chf"`
	PriceRaw     string  `json:"price_raw"`
	SpecsSummary string  `json:"specs_summary"`
	Link         string  `json:"link"`
	Retailer     string  `json:"retailer"` // e.g., "digitec"
}

// RankedProduct is a model-scored product from the ranking step
type RankedProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
	Rationale string  `json:"rationale"`
	PriceCHF  float64 `json:"price_chf"`
	Link      string  `json:"link"`
	KeySpecs  string  `json:"key_specs"`
}

// Preferences are shopper answers remembered between sessions
type Preferences struct {
	Values    map[string]string `json:"preferences"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Message is a role-tagged chat message sent to the language model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
