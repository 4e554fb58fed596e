package main

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/logging"
	"github.com/MrCodeEU/facelock/pkg/recognition"
	"github.com/MrCodeEU/facelock/pkg/storage"
)

// enrollSamples is how many face samples one enrollment captures.
const enrollSamples = 5

func cmdEnroll(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("identity required\nUsage: facelock enroll <identity>")
	}
	name := args[0]

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	if store.IdentityExists(name) {
		return fmt.Errorf("identity '%s' is already enrolled. Use 'facelock add-face %s' for more samples or 'facelock remove %s' first", name, name, name)
	}

	logging.Infof("Starting enrollment for: %s", name)
	fmt.Printf("Enrolling '%s'...\n", name)
	fmt.Println("Please ensure good lighting and face the camera.")
	fmt.Println()

	descriptors, err := captureSamples(enrollSamples)
	if err != nil {
		return err
	}

	if err := store.CreateIdentity(name, descriptors, map[string]string{"enrolled_via": "cli"}); err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}

	fmt.Printf("\nEnrolled '%s' with %d sample(s).\n", name, len(descriptors))
	return nil
}

func cmdAddFace(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("identity required\nUsage: facelock add-face <identity>")
	}
	name := args[0]

	store, err := newStore()
	if err != nil {
		return err
	}
	if !store.IdentityExists(name) {
		return fmt.Errorf("identity '%s' is not enrolled. Use 'facelock enroll %s' first", name, name)
	}

	logging.Infof("Adding face samples for: %s", name)

	descriptors, err := captureSamples(1)
	if err != nil {
		return err
	}

	for _, d := range descriptors {
		if err := store.AddDescriptor(name, d); err != nil {
			return fmt.Errorf("failed to store sample: %w", err)
		}
	}

	fmt.Printf("Added %d sample(s) to '%s'.\n", len(descriptors), name)
	return nil
}

// captureSamples grabs frames until it has embedded the requested
// number of faces, picking the largest face per frame.
func captureSamples(count int) ([]recognition.Descriptor, error) {
	pipeline := recognition.NewPipeline()
	if err := pipeline.LoadModels(cfg.Recognition.ModelPath); err != nil {
		return nil, fmt.Errorf("failed to load models (run 'facelock download-models'?): %w", err)
	}
	defer func() { _ = pipeline.Close() }()

	cam, err := openCamera()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cam.Close() }()

	var descriptors []recognition.Descriptor
	for len(descriptors) < count {
		frame, err := cam.Capture()
		if errors.Is(err, camera.ErrNoFrame) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame capture failed: %w", err)
		}

		candidates, err := pipeline.Detect(frame)
		if err != nil {
			return nil, err
		}
		best := largestCandidate(candidates)
		if best == nil {
			continue
		}

		desc, err := pipeline.Embed(frame, best.Keypoints)
		if err != nil {
			if errors.Is(err, recognition.ErrNoFaceDetected) {
				continue
			}
			return nil, err
		}

		descriptors = append(descriptors, desc)
		fmt.Printf("[%d/%d] Sample captured.\n", len(descriptors), count)
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no face captured")
	}
	return descriptors, nil
}

// largestCandidate returns the candidate with the biggest box area, or
// nil when the frame holds no faces.
func largestCandidate(candidates []recognition.FaceCandidate) *recognition.FaceCandidate {
	var best *recognition.FaceCandidate
	bestArea := 0.0
	for i := range candidates {
		area := candidates[i].Box.Width() * candidates[i].Box.Height()
		if area > bestArea {
			best = &candidates[i]
			bestArea = area
		}
	}
	return best
}
