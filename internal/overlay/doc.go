// Package overlay draws debug and preview markings onto frames.
//
// A Compositor collects drawing requests while a frame is processed
// (polylines, rectangle outlines, text and an optional replacement image)
// and renders them all at once in RenderAndClear. Deferring the drawing
// keeps the frame used for detection untouched until every stage is done
// with it.
//
// # Rendering
//
// Polylines are closed and stroked with anti-aliased round-joined segments
// rasterized by golang.org/x/image/vector. Rectangles are axis-aligned
// outlines centred on the rectangle's border pixels. Text uses the
// basicfont 7x13 face, magnified with nearest-neighbour resampling so the
// glyphs stay crisp at preview sizes.
//
// # Lifecycle
//
//	c := overlay.New()
//	c.AddRect(&roi)
//	c.AddLine(quad.Points)
//	out := c.RenderAndClear(frame) // queues are empty again
package overlay
