package recognition

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/geometry"
	"github.com/MrCodeEU/facelock/pkg/logging"
)

// DlibPipeline implements the detect and embed collaborator contracts
// using dlib via go-face.
type DlibPipeline struct {
	rec       *face.Recognizer
	modelPath string
	loaded    bool
	mu        sync.RWMutex
}

// NewPipeline creates an unloaded pipeline; call LoadModels before use.
func NewPipeline() *DlibPipeline {
	return &DlibPipeline{}
}

// LoadModels loads the dlib models from the specified path. The path
// should contain:
// - shape_predictor_5_face_landmarks.dat
// - dlib_face_recognition_resnet_model_v1.dat
// - mmod_human_face_detector.dat (optional, for CNN detection)
func (p *DlibPipeline) LoadModels(modelPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	p.rec = rec
	p.modelPath = modelPath
	p.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (p *DlibPipeline) IsLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Close releases the recognizer resources.
func (p *DlibPipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rec != nil {
		p.rec.Close()
		p.rec = nil
	}
	p.loaded = false
	return nil
}

// Detect finds all face candidates in a frame. The returned order is
// not meaningful. go-face does not expose dlib's shape points, so the
// 5 keypoints are estimated from the bounding box by facial
// proportions; they are good enough to seed alignment, which re-fits
// against the canonical template anyway.
func (p *DlibPipeline) Detect(frame camera.Frame) ([]FaceCandidate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.loaded {
		return nil, ErrModelNotLoaded
	}

	faces, err := p.rec.Recognize(frame.Data)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	candidates := make([]FaceCandidate, len(faces))
	for i, f := range faces {
		box := geometry.Rect{
			X1: float64(f.Rectangle.Min.X),
			Y1: float64(f.Rectangle.Min.Y),
			X2: float64(f.Rectangle.Max.X),
			Y2: float64(f.Rectangle.Max.Y),
		}
		candidates[i] = FaceCandidate{
			Box:       box,
			Keypoints: EstimateKeypoints(box),
		}
	}

	logging.Debugf("Detected %d face candidate(s) in frame", len(candidates))
	return candidates, nil
}

// EstimateKeypoints places the 5 keypoints inside a face box using
// average facial proportions: eyes at 40% height, nose at 60%, mouth
// corners at 80%.
func EstimateKeypoints(box geometry.Rect) [5]geometry.Point {
	w := box.Width()
	h := box.Height()
	return [5]geometry.Point{
		{X: box.X1 + 0.30*w, Y: box.Y1 + 0.40*h}, // left eye
		{X: box.X1 + 0.70*w, Y: box.Y1 + 0.40*h}, // right eye
		{X: box.X1 + 0.50*w, Y: box.Y1 + 0.60*h}, // nose tip
		{X: box.X1 + 0.35*w, Y: box.Y1 + 0.80*h}, // left mouth corner
		{X: box.X1 + 0.65*w, Y: box.Y1 + 0.80*h}, // right mouth corner
	}
}

// Embed aligns the face given by its keypoints to the canonical
// 112x112 crop and computes its embedding.
func (p *DlibPipeline) Embed(frame camera.Frame, keypoints [5]geometry.Point) (Descriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var zero Descriptor
	if !p.loaded {
		return zero, ErrModelNotLoaded
	}

	img, err := frame.Image()
	if err != nil {
		return zero, fmt.Errorf("failed to decode frame: %w", err)
	}

	aligned := Align5pt(img, keypoints, AlignedSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, aligned, &jpeg.Options{Quality: 95}); err != nil {
		return zero, fmt.Errorf("failed to encode aligned face: %w", err)
	}

	f, err := p.rec.RecognizeSingle(buf.Bytes())
	if err != nil {
		return zero, fmt.Errorf("embedding failed: %w", err)
	}
	if f == nil {
		return zero, ErrNoFaceDetected
	}

	return f.Descriptor, nil
}
