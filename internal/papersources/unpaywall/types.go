// Package unpaywall provides a client for the Unpaywall REST API.
//
// Unpaywall indexes open-access locations for DOI-registered articles. This
// package implements the papersources.FullTextFetcher interface for locating
// legal open-access PDFs by DOI.
//
// API Documentation: https://unpaywall.org/products/api
package unpaywall

// ArticleResponse represents the Unpaywall response for a single DOI.
type ArticleResponse struct {
	// DOI is the requested Digital Object Identifier.
	DOI string `json:"doi"`

	// Title is the article title.
	Title string `json:"title"`

	// IsOA indicates whether any open-access location is known.
	IsOA bool `json:"is_oa"`

	// OAStatus is the open-access color ("gold", "green", "hybrid", "bronze", "closed").
	OAStatus string `json:"oa_status"`

	// JournalName is the publishing journal.
	JournalName string `json:"journal_name"`

	// Year is the publication year.
	Year int `json:"year"`

	// BestOALocation is the best open-access location, if any.
	BestOALocation *OALocation `json:"best_oa_location"`

	// OALocations lists all known open-access locations.
	OALocations []OALocation `json:"oa_locations"`
}

// OALocation describes one open-access copy of an article.
type OALocation struct {
	// URL is the landing page URL.
	URL string `json:"url"`

	// URLForPDF is the direct PDF URL, when known.
	URLForPDF string `json:"url_for_pdf"`

	// HostType is "publisher" or "repository".
	HostType string `json:"host_type"`

	// Version is the manuscript version ("publishedVersion", "acceptedVersion", ...).
	Version string `json:"version"`

	// License is the license identifier, when known.
	License string `json:"license"`
}

// ErrorResponse represents an Unpaywall API error.
type ErrorResponse struct {
	// Error indicates an error occurred.
	Error bool `json:"error"`

	// Message is the error message.
	Message string `json:"message"`
}
