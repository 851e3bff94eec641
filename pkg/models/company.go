package models

import "time"

// Company is the client company record the orchestrator runs against.
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WebsiteURL    string    `json:"website_url,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	BusinessModel string    `json:"business_model,omitempty"`
	ProductOffer  string    `json:"product_offer,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
