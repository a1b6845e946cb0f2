// Package ocr turns the unordered word boxes emitted by a text recognition
// engine into ordered lines of text.
//
// The package provides:
//
// - Token and BBox, the word-level output of a recognition engine
// - Filtering of low-confidence and empty tokens
// - Line reconstruction by vertical clustering of token boxes
// - The Recognizer interface implemented by engine backends
//
// Main Functions:
//
// - Filter: Drops tokens at or below a confidence floor and sorts the rest
// - TokensToLines: Groups sorted tokens into lines ordered top-to-bottom
// - LineText / Text: Renders lines as plain text
package ocr
