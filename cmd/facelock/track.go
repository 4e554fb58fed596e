package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrCodeEU/facelock/pkg/action"
	"github.com/MrCodeEU/facelock/pkg/camera"
	"github.com/MrCodeEU/facelock/pkg/lock"
	"github.com/MrCodeEU/facelock/pkg/logging"
	"github.com/MrCodeEU/facelock/pkg/recognition"
	"github.com/MrCodeEU/facelock/pkg/storage"
)

const stopReason = "Tracking stopped"

// tracker bundles the collaborators of one tracking run.
type tracker struct {
	store    *storage.FileStore
	db       *recognition.FaceDB
	pipeline *recognition.DlibPipeline
	manager  *lock.Manager
	cam      camera.Camera

	// lockRequested arms lock acquisition for the next frame in which
	// the target verifies.
	lockRequested bool
}

func cmdTrack(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("target identity required\nUsage: facelock track <identity>")
	}
	target := args[0]

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	if !store.IdentityExists(target) {
		return fmt.Errorf("identity '%s' is not enrolled. Use 'facelock enroll %s' first", target, target)
	}

	gallery, err := store.Gallery()
	if err != nil {
		return fmt.Errorf("failed to load identity database: %w", err)
	}
	db := recognition.NewFaceDB(cfg.Recognition.DistanceThreshold)
	db.Load(gallery)
	logging.Infof("Identity database loaded: %d descriptor(s)", db.Identities())

	pipeline := recognition.NewPipeline()
	if err := pipeline.LoadModels(cfg.Recognition.ModelPath); err != nil {
		return fmt.Errorf("failed to load models (run 'facelock download-models'?): %w", err)
	}
	defer func() { _ = pipeline.Close() }()

	cam, err := openCamera()
	if err != nil {
		return err
	}
	defer func() { _ = cam.Close() }()

	detector := action.NewDetector(actionConfig(), recognition.BoxLandmarker{})
	manager := lock.NewManager(lock.Config{
		GateRadius:  cfg.Lock.GateRadius,
		MaxFailures: cfg.Lock.MaxFailures,
		HistoryDir:  cfg.Lock.HistoryDir,
	}, target, detector, pipeline, db)

	tr := &tracker{
		store:    store,
		db:       db,
		pipeline: pipeline,
		manager:  manager,
		cam:      cam,
		// Arm acquisition immediately so tracking starts as soon as the
		// target shows up; 'unlock' + 'lock' re-arms it later.
		lockRequested: true,
	}

	fmt.Printf("Tracking '%s'. Type 'help' for commands, 'quit' to stop.\n", target)
	return tr.run()
}

// openCamera picks the capture backend for the configured device. A
// directory replays stored frames; live V4L2 capture is not wired yet.
func openCamera() (camera.Camera, error) {
	device := cfg.Camera.Device

	if info, err := os.Stat(device); err == nil && info.IsDir() {
		cam := camera.NewFileCamera()
		if err := cam.Open(device); err != nil {
			return nil, fmt.Errorf("failed to open frame directory %s: %w", device, err)
		}
		logging.Infof("Replaying frames from %s", device)
		return cam, nil
	}

	return nil, fmt.Errorf("no capture backend for device %s (point camera.device at a frame directory)", device)
}

func actionConfig() action.Config {
	return action.Config{
		BlinkEARThreshold: cfg.Actions.BlinkEARThreshold,
		SmileMARThreshold: cfg.Actions.SmileMARThreshold,
		MovementThreshold: cfg.Actions.MovementThreshold,
		BlinkRefractory:   time.Duration(cfg.Actions.BlinkRefractoryMs) * time.Millisecond,
		SmileRefractory:   time.Duration(cfg.Actions.SmileRefractoryMs) * time.Millisecond,
	}
}

// run is the frame loop. It interleaves frame processing with the
// stdin command surface and stops on quit, SIGINT, or the end of a
// frame replay. The lock is always released on the way out so the
// history file gets its footer.
func (t *tracker) run() error {
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	interval := time.Second / time.Duration(cfg.Camera.FPS)
	defer t.manager.Unlock(stopReason)

	for {
		select {
		case <-sig:
			fmt.Println("\nInterrupted.")
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			if quit := t.handleCommand(line); quit {
				return nil
			}
			continue
		default:
		}

		frame, err := t.cam.Capture()
		if errors.Is(err, camera.ErrNoFrame) {
			fmt.Println("End of frames.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame capture failed: %w", err)
		}

		if err := t.processFrame(frame); err != nil {
			logging.WithError(err).Warn("Frame processing failed")
		}

		time.Sleep(interval)
	}
}

// processFrame runs detection on one frame and feeds the lock state
// machine: tracking updates while locked, lock acquisition while armed.
func (t *tracker) processFrame(frame camera.Frame) error {
	candidates, err := t.pipeline.Detect(frame)
	if err != nil {
		return err
	}

	if t.manager.Locked() {
		if _, err := t.manager.UpdateTracking(frame, candidates); err != nil {
			return err
		}
		if !t.manager.Locked() {
			// Auto-unlock happened inside the update.
			fmt.Printf("Lock on '%s' released: face lost.\n", t.manager.Target())
			t.lockRequested = true
		}
		return nil
	}

	if !t.lockRequested {
		return nil
	}

	for _, candidate := range candidates {
		desc, err := t.pipeline.Embed(frame, candidate.Keypoints)
		if err != nil {
			if errors.Is(err, recognition.ErrNoFaceDetected) {
				continue
			}
			return err
		}
		match := t.db.Match(desc)
		if !match.Accepted {
			continue
		}
		if t.manager.TryLock(candidate, match.Identity) {
			t.lockRequested = false
			fmt.Printf("Locked onto '%s' (distance %.3f). History: %s\n",
				match.Identity, match.Distance, t.manager.HistoryPath())
			break
		}
	}
	return nil
}

func (t *tracker) handleCommand(line string) (quit bool) {
	switch line {
	case "":
	case "lock":
		if t.manager.Locked() {
			fmt.Println("Already locked.")
			break
		}
		t.lockRequested = true
		fmt.Println("Lock armed; waiting for the target to verify.")
	case "unlock":
		if !t.manager.Locked() {
			fmt.Println("Not locked.")
			break
		}
		t.manager.Unlock("Manual unlock requested")
		fmt.Println("Unlocked.")
	case "reload":
		gallery, err := t.store.Gallery()
		if err != nil {
			fmt.Printf("Reload failed: %v\n", err)
			break
		}
		t.db.Load(gallery)
		fmt.Printf("Identity database reloaded: %d descriptor(s).\n", t.db.Identities())
	case "+":
		fmt.Printf("Match threshold: %.2f\n", t.db.AdjustThreshold(0.01))
	case "-":
		fmt.Printf("Match threshold: %.2f\n", t.db.AdjustThreshold(-0.01))
	case "status":
		t.printStatus()
	case "help":
		fmt.Println("Commands: lock, unlock, reload, +, -, status, quit")
	case "quit", "q":
		return true
	default:
		fmt.Printf("Unknown command: %s (try 'help')\n", line)
	}
	return false
}

func (t *tracker) printStatus() {
	if !t.manager.Locked() {
		fmt.Printf("State: unlocked (threshold %.2f, lock armed: %t)\n",
			t.db.Threshold(), t.lockRequested)
		return
	}

	fmt.Printf("State: locked onto '%s', %d action(s) recorded\n",
		t.manager.Target(), t.manager.ActionCount())
	if state := t.manager.FaceState(); state != nil {
		fmt.Printf("Position: (%.0f, %.0f), EAR %.3f, MAR %.3f, misses %d\n",
			state.Centroid.X, state.Centroid.Y,
			state.EyeAspectRatio, state.MouthAspectRatio,
			state.ConsecutiveFailures)
	}
}
