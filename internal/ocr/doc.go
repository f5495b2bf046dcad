// Package ocr reads the frame label inside a detected border using
// Tesseract.
//
// Tesseract is reached through gosseract/v2 and must be installed on the
// system together with the language data:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A Reader wraps one Tesseract client. LabelStage is a marker.Stage that
// crops each frame to the quad's bounding box, reads the text there and
// writes it onto the frame next to the border.
//
// OCR is expensive. The label stage only runs when a quad was found, and
// the region passed to Tesseract is limited to the quad's bounds.
package ocr
