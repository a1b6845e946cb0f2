// Package hocr implements parsing and generation of hOCR data, the HTML-based
// standard format for representing OCR results, and converts between hOCR
// words and ocr.Token values.
//
// The package implements the part of the hOCR hierarchy the digitizer needs:
// Document → Pages → Lines → Words, with bounding boxes and word confidence.
// Areas and paragraphs are flattened into their lines while parsing.
//
// Key Types:
//
// - HOCR: Top-level structure representing an entire hOCR document
// - Page: A single page with class 'ocr_page'
// - Line: A line of text with class 'ocr_line'
// - Word: A single word with class 'ocrx_word'
// - BoundingBox: A rectangle with coordinates for positioning elements
//
// Main Functions:
//
// - ParseHOCR: Parses hOCR data from HTML into the object model
// - GenerateHOCRDocument: Generates valid hOCR HTML from the object model
// - PageFromLines / Page.Tokens: Convert between hOCR pages and OCR tokens
package hocr
