// Package pipeline runs film frames through border detection.
//
// A Pipeline owns the per-stream state: the ROI tracker, the lifecycle
// State and the overlay compositor. Each call to Process takes one frame
// through calibration, edge extraction, quad reduction, the marker stage
// and the preview overlay, and returns a freshly allocated output frame.
//
//	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	for frame := range frames {
//		res, err := p.Process(frame)
//		...
//	}
package pipeline
