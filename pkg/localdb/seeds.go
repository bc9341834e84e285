package localdb

import "time"

// Row is one record keyed by column name.
type Row map[string]any

var seedTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultSeeds returns the fixed seed rows used to fill empty tables.
// Tables without an entry stay empty after bootstrap.
func DefaultSeeds() map[string][]Row {
	return map[string][]Row{
		"users": {
			{"id": "user-admin", "email": "admin@muhurat.local", "name": "Administrator", "role": "admin", "created_at": seedTime},
			{"id": "user-demo", "email": "demo@muhurat.local", "name": "Demo User", "role": "user", "created_at": seedTime},
		},
		"theme_settings": {
			{"id": "theme-saffron", "name": "Saffron", "primary_color": "#F4A300", "secondary_color": "#7B1E1E", "font_family": "Poppins", "is_dark": false, "active": true},
			{"id": "theme-midnight", "name": "Midnight", "primary_color": "#1B1F3B", "secondary_color": "#E0B973", "font_family": "Poppins", "is_dark": true, "active": false},
		},
		"image_assets": {
			{"id": "img-hero", "name": "hero", "url": "/assets/hero.jpg", "alt_text": "Temple at sunrise", "category": "banner"},
			{"id": "img-logo", "name": "logo", "url": "/assets/logo.svg", "alt_text": "Muhurat logo", "category": "brand"},
			{"id": "img-muhurat", "name": "muhurat", "url": "/assets/muhurat.jpg", "alt_text": "Diya and marigolds", "category": "service"},
		},
		"services": {
			{"id": "svc-basic", "name": "Basic Muhurat", "description": "Five auspicious dates with timings", "price": 499.0, "currency": "INR", "duration_minutes": 0, "features": []string{"dates", "inauspicious periods"}, "active": true},
			{"id": "svc-standard", "name": "Standard Muhurat", "description": "Detailed report with remedies", "price": 999.0, "currency": "INR", "duration_minutes": 0, "features": []string{"dates", "remedies", "lucky elements"}, "active": true},
			{"id": "svc-premium", "name": "Premium Muhurat", "description": "Full report with alternatives and yogas", "price": 1999.0, "currency": "INR", "duration_minutes": 0, "features": []string{"dates", "remedies", "alternatives", "special yogas"}, "active": true},
			{"id": "svc-consult", "name": "Astrologer Consultation", "description": "Live session with an astrologer", "price": 2499.0, "currency": "INR", "duration_minutes": 30, "features": []string{"video call"}, "active": true},
		},
		"config": {
			{"id": "cfg-currency", "key": "default_currency", "value": "INR", "description": "Currency for new readings"},
			{"id": "cfg-standard", "key": "standard_threshold", "value": "999", "description": "Minimum amount for a standard report"},
			{"id": "cfg-premium", "key": "premium_threshold", "value": "1999", "description": "Minimum amount for a premium report"},
			{"id": "cfg-temperature", "key": "generation_temperature", "value": "0.7", "description": "Sampling temperature for report generation"},
		},
		"payment_providers": {
			{"id": "pp-razorpay", "name": "Razorpay", "mode": "test", "settings": map[string]any{"currency": "INR"}, "enabled": true},
			{"id": "pp-stripe", "name": "Stripe", "mode": "test", "settings": map[string]any{"currency": "USD"}, "enabled": false},
		},
		"payment_methods": {
			{"id": "pm-upi", "provider_id": "pp-razorpay", "name": "UPI", "type": "upi", "enabled": true},
			{"id": "pm-card", "provider_id": "pp-razorpay", "name": "Card", "type": "card", "enabled": true},
			{"id": "pm-netbanking", "provider_id": "pp-razorpay", "name": "Net Banking", "type": "netbanking", "enabled": true},
		},
		"store_items": {
			{"id": "item-rudraksha", "name": "Five Mukhi Rudraksha", "description": "Energised rudraksha bead", "price": 799.0, "currency": "INR", "stock": 40, "category": "spiritual", "images": []string{"/assets/rudraksha.jpg"}},
			{"id": "item-yantra", "name": "Shree Yantra", "description": "Copper yantra for prosperity", "price": 1299.0, "currency": "INR", "stock": 15, "category": "yantra", "images": []string{"/assets/yantra.jpg"}},
			{"id": "item-mala", "name": "Tulsi Mala", "description": "108 bead tulsi mala", "price": 349.0, "currency": "INR", "stock": 60, "category": "spiritual", "images": []string{"/assets/mala.jpg"}},
		},
		"gemstones": {
			{"id": "gem-ruby", "name": "Ruby", "planet": "Sun", "color": "Red", "benefits": []string{"confidence", "leadership"}, "price_per_carat": 4500.0},
			{"id": "gem-pearl", "name": "Pearl", "planet": "Moon", "color": "White", "benefits": []string{"calm mind"}, "price_per_carat": 1200.0},
			{"id": "gem-yellow-sapphire", "name": "Yellow Sapphire", "planet": "Jupiter", "color": "Yellow", "benefits": []string{"wisdom", "marriage prospects"}, "price_per_carat": 6500.0},
			{"id": "gem-emerald", "name": "Emerald", "planet": "Mercury", "color": "Green", "benefits": []string{"communication"}, "price_per_carat": 5200.0},
		},
		"featured_content": {
			{"id": "fc-muhurat", "title": "Why timing matters", "body": "An auspicious start sets the tone for every ceremony.", "image_url": "/assets/muhurat.jpg", "position": 1, "published": true},
			{"id": "fc-rahu", "title": "Understanding Rahu Kaal", "body": "A daily window best kept free of new beginnings.", "image_url": "/assets/hero.jpg", "position": 2, "published": true},
		},
		"report_formats": {
			{"id": "fmt-classic", "name": "Classic", "description": "Traditional layout with saffron accents", "skin": "classic", "is_default": true, "active": true},
			{"id": "fmt-minimal", "name": "Minimal", "description": "Clean single-column layout", "skin": "minimal", "is_default": false, "active": true},
			{"id": "fmt-royal", "name": "Royal", "description": "Ornate layout for premium reports", "skin": "royal", "is_default": false, "active": true},
		},
		"readings": {
			{"id": "reading-sample", "user_id": "user-demo", "event_name": "Sample Wedding", "event_type": "marriage", "amount": 999.0, "currency": "INR", "payment_status": "completed", "is_paid": true, "report": nil, "created_at": seedTime},
		},
		"transactions": {
			{"id": "txn-sample", "user_id": "user-demo", "reading_id": "reading-sample", "amount": 999.0, "currency": "INR", "status": "completed", "provider": "pp-razorpay", "created_at": seedTime},
		},
	}
}
