// Package core provides a client for the CORE v3 API.
//
// CORE aggregates open-access research papers from repositories worldwide
// and exposes extracted full text for many of them. This package implements
// the papersources.FullTextFetcher interface for retrieving full text and
// PDF download links.
//
// API Documentation: https://api.core.ac.uk/docs/v3
package core

// SearchResponse represents the response from the CORE works search endpoint.
type SearchResponse struct {
	// TotalHits is the total number of works matching the query.
	TotalHits int `json:"totalHits"`

	// Limit is the page size used for this response.
	Limit int `json:"limit"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Results contains the matching works.
	Results []Work `json:"results"`
}

// Work represents a single work in the CORE API.
type Work struct {
	// ID is the CORE internal identifier.
	ID int64 `json:"id"`

	// DOI is the Digital Object Identifier, when known.
	DOI string `json:"doi"`

	// Title is the work title.
	Title string `json:"title"`

	// Abstract is the work abstract.
	Abstract string `json:"abstract"`

	// FullText is the extracted full text, when CORE has it.
	FullText string `json:"fullText"`

	// DownloadURL is the direct download link for the PDF, when available.
	DownloadURL string `json:"downloadUrl"`

	// YearPublished is the publication year.
	YearPublished int `json:"yearPublished"`

	// PublishedDate is the full publication date, when known.
	PublishedDate string `json:"publishedDate"`

	// DocumentType is the work type (e.g., "research", "thesis").
	DocumentType string `json:"documentType"`

	// Publisher is the publishing organization.
	Publisher string `json:"publisher"`

	// CitationCount is the number of citations CORE knows about.
	CitationCount int `json:"citationCount"`

	// Authors lists the work authors.
	Authors []Author `json:"authors"`

	// Language is the work language, when detected.
	Language *Language `json:"language,omitempty"`
}

// Author represents a work author.
type Author struct {
	// Name is the author's name.
	Name string `json:"name"`
}

// Language represents a detected work language.
type Language struct {
	// Code is the ISO 639-1 language code.
	Code string `json:"code"`

	// Name is the language name.
	Name string `json:"name"`
}

// ErrorResponse represents a CORE API error.
type ErrorResponse struct {
	// Message is the error message.
	Message string `json:"message"`
}
