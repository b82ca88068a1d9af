package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCatalogPrices(db)
	seedTierMatrices(db)
	seedDiscounts(db)
	seedTaxRates(db)
	seedWebhookEndpoints(db)

	log.Println("Seeding completed successfully!")
}

// Fixed purchasable IDs so repeated runs and local API calls line up.
var purchasables = []string{
	"6f1d6e1a-0001-4000-8000-000000000001", // espresso machine
	"6f1d6e1a-0001-4000-8000-000000000002", // grinder
	"6f1d6e1a-0001-4000-8000-000000000003", // kettle
	"6f1d6e1a-0001-4000-8000-000000000004", // filter pack
	"6f1d6e1a-0001-4000-8000-000000000005", // tamper
}

func seedCatalogPrices(db *sql.DB) {
	log.Println("Seeding catalog prices...")
	prices := []struct {
		Purchasable string
		Source      string
		UnitPrice   int64
	}{
		{purchasables[0], "base", 129900},
		{purchasables[0], "sale", 109900},
		{purchasables[1], "base", 24900},
		{purchasables[2], "base", 8900},
		{purchasables[3], "base", 1250},
		{purchasables[3], "promotion", 990},
		{purchasables[4], "base", 2900},
	}
	for _, p := range prices {
		_, err := db.Exec(`
			INSERT INTO catalog_prices (purchasable_id, source, unit_price, currency, active)
			SELECT $1, $2, $3, 'EUR', true
			WHERE NOT EXISTS (
				SELECT 1 FROM catalog_prices
				WHERE purchasable_id = $1 AND source = $2 AND currency = 'EUR'
			);
		`, p.Purchasable, p.Source, p.UnitPrice)
		if err != nil {
			log.Printf("Failed to seed catalog price %s/%s: %v", p.Purchasable, p.Source, err)
		}
	}
}

func seedTierMatrices(db *sql.DB) {
	log.Println("Seeding tier matrices...")
	tiers := []struct {
		Purchasable string
		Name        string
		MinQty      int
		UnitPrice   int64
	}{
		{purchasables[3], "carton", 10, 1100},
		{purchasables[3], "pallet", 100, 950},
		{purchasables[4], "bulk", 25, 2500},
	}
	for _, t := range tiers {
		_, err := db.Exec(`
			INSERT INTO tier_matrices (purchasable_id, currency, tier_name, min_qty, unit_price, active)
			SELECT $1, 'EUR', $2, $3, $4, true
			WHERE NOT EXISTS (
				SELECT 1 FROM tier_matrices
				WHERE purchasable_id = $1 AND tier_name = $2 AND currency = 'EUR'
			);
		`, t.Purchasable, t.Name, t.MinQty, t.UnitPrice)
		if err != nil {
			log.Printf("Failed to seed tier %s for %s: %v", t.Name, t.Purchasable, err)
		}
	}
}

func seedDiscounts(db *sql.DB) {
	log.Println("Seeding discounts...")
	discounts := []struct {
		Code       string
		Name       string
		Scope      string
		Kind       string
		Value      int64
		PercentBps sql.NullInt32
		MinCart    int64
		Priority   int
	}{
		{"WELCOME10", "Welcome 10%", "cart", "percent", 0, sql.NullInt32{Int32: 1000, Valid: true}, 5000, 10},
		{"SAVE5", "Five off", "cart", "fixed", 500, sql.NullInt32{}, 2000, 20},
		{"FILTERDEAL", "Filter pack deal", "item", "percent", 0, sql.NullInt32{Int32: 500, Valid: true}, 0, 10},
	}
	for _, d := range discounts {
		_, err := db.Exec(`
			INSERT INTO discounts (code, name, scope, kind, value, percent_bps, min_cart_value, priority, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
			ON CONFLICT (code) WHERE code IS NOT NULL DO NOTHING;
		`, d.Code, d.Name, d.Scope, d.Kind, d.Value, d.PercentBps, d.MinCart, d.Priority)
		if err != nil {
			log.Printf("Failed to seed discount %s: %v", d.Code, err)
		}
	}
}

func seedTaxRates(db *sql.DB) {
	log.Println("Seeding tax rates...")
	rates := []struct {
		Country  string
		Province sql.NullString
		TaxClass string
		RateBps  int
		Name     string
	}{
		{"DE", sql.NullString{}, "standard", 1900, "DE VAT 19%"},
		{"DE", sql.NullString{}, "reduced", 700, "DE VAT 7%"},
		{"FR", sql.NullString{}, "standard", 2000, "FR VAT 20%"},
		{"CA", sql.NullString{String: "QC", Valid: true}, "standard", 1498, "QC GST+QST"},
		{"CA", sql.NullString{}, "standard", 500, "CA GST"},
	}
	for _, r := range rates {
		_, err := db.Exec(`
			INSERT INTO tax_rates (country, province, tax_class, currency, rate_bps, name, active)
			SELECT $1, $2, $3, 'EUR', $4, $5, true
			WHERE NOT EXISTS (
				SELECT 1 FROM tax_rates
				WHERE country = $1 AND province IS NOT DISTINCT FROM $2
				  AND tax_class = $3 AND currency = 'EUR'
			);
		`, r.Country, r.Province, r.TaxClass, r.RateBps, r.Name)
		if err != nil {
			log.Printf("Failed to seed tax rate %s: %v", r.Name, err)
		}
	}
}

func seedWebhookEndpoints(db *sql.DB) {
	log.Println("Seeding webhook endpoints...")
	_, err := db.Exec(`
		INSERT INTO webhook_endpoints (url, secret, topics, active)
		SELECT 'http://localhost:9099/hooks/pricing', 'dev-secret', $1, true
		WHERE NOT EXISTS (
			SELECT 1 FROM webhook_endpoints WHERE url = 'http://localhost:9099/hooks/pricing'
		);
	`, pq.Array([]string{"cart.repriced", "cart.unpriceable"}))
	if err != nil {
		log.Printf("Failed to seed webhook endpoint: %v", err)
	}
}
