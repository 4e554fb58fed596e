package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/MrCodeEU/facelock/pkg/config"
	"github.com/MrCodeEU/facelock/pkg/logging"
	"github.com/MrCodeEU/facelock/pkg/storage"
)

const version = "0.1.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

var (
	cfg      *config.Config
	commands map[string]*Command
)

func init() {
	commands = map[string]*Command{
		"track": {
			Name:        "track",
			Description: "Lock onto an enrolled identity and track it",
			Usage:       "facelock track <identity>",
			Run:         cmdTrack,
		},
		"enroll": {
			Name:        "enroll",
			Description: "Enroll a new identity from camera frames",
			Usage:       "facelock enroll <identity>",
			Run:         cmdEnroll,
		},
		"add-face": {
			Name:        "add-face",
			Description: "Add face samples to an existing identity",
			Usage:       "facelock add-face <identity>",
			Run:         cmdAddFace,
		},
		"remove": {
			Name:        "remove",
			Description: "Remove an enrolled identity",
			Usage:       "facelock remove <identity>",
			Run:         cmdRemove,
		},
		"list": {
			Name:        "list",
			Description: "List all enrolled identities",
			Usage:       "facelock list",
			Run:         cmdList,
		},
		"download-models": {
			Name:        "download-models",
			Description: "Download the dlib face recognition models",
			Usage:       "facelock download-models [directory]",
			Run:         cmdDownloadModels,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "facelock config",
			Run:         cmdConfig,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "facelock version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "facelock help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	// Parse global flags
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	// Load configuration
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("FaceLock v%s starting", version)
	logging.Debugf("Config loaded, storage dir: %s", cfg.Storage.DataDir)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FaceLock - Persistent Face Tracking with Action History")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Usage: facelock [options] <command> [arguments]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <file>   Path to configuration file")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println("\nCommands:")
	for _, name := range []string{"track", "enroll", "add-face", "remove", "list", "download-models", "config", "version", "help"} {
		cmd := commands[name]
		fmt.Printf("  %-16s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  facelock enroll alice       # Enroll identity 'alice'")
	fmt.Println("  facelock track alice        # Lock onto 'alice' and track")
	fmt.Println("  facelock -debug track alice # Track with debug output")
	fmt.Println("\nRun 'facelock help <command>' for more information on a command.")
}

func newStore() (*storage.FileStore, error) {
	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	return store, nil
}

func cmdRemove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("identity required\nUsage: facelock remove <identity>")
	}
	name := args[0]

	store, err := newStore()
	if err != nil {
		return err
	}

	logging.Infof("Removing identity: %s", name)

	if err := store.DeleteIdentity(name); err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return fmt.Errorf("identity '%s' is not enrolled", name)
		}
		return err
	}

	fmt.Printf("Identity '%s' has been removed.\n", name)
	return nil
}

func cmdList(args []string) error {
	logging.Debug("Listing enrolled identities")

	store, err := newStore()
	if err != nil {
		return err
	}

	names, err := store.ListIdentities()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	fmt.Println("Enrolled identities:")
	for _, name := range names {
		id, err := store.LoadIdentity(name)
		if err != nil {
			fmt.Printf("  - %s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("  - %s (%d sample(s), enrolled %s)\n",
			name, len(id.Descriptors), id.EnrolledAt.Format("2006-01-02"))
	}
	fmt.Printf("\nTotal: %d identity(ies)\n", len(names))

	return nil
}

func cmdConfig(args []string) error {
	logging.Debug("Showing configuration")

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Camera]")
	fmt.Printf("  Device:          %s\n", cfg.Camera.Device)
	fmt.Printf("  Resolution:      %dx%d @ %d FPS\n", cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	fmt.Println()
	fmt.Println("[Recognition]")
	fmt.Printf("  Threshold:       %.2f\n", cfg.Recognition.DistanceThreshold)
	fmt.Printf("  Model Path:      %s\n", cfg.Recognition.ModelPath)
	fmt.Println()
	fmt.Println("[Lock]")
	fmt.Printf("  Gate Radius:     %.0f px\n", cfg.Lock.GateRadius)
	fmt.Printf("  Max Failures:    %d\n", cfg.Lock.MaxFailures)
	fmt.Printf("  History Dir:     %s\n", cfg.Lock.HistoryDir)
	fmt.Println()
	fmt.Println("[Actions]")
	fmt.Printf("  Blink EAR:       %.2f\n", cfg.Actions.BlinkEARThreshold)
	fmt.Printf("  Smile MAR:       %.2f\n", cfg.Actions.SmileMARThreshold)
	fmt.Printf("  Movement:        %.0f px\n", cfg.Actions.MovementThreshold)
	fmt.Printf("  Blink Refractory: %d ms\n", cfg.Actions.BlinkRefractoryMs)
	fmt.Printf("  Smile Refractory: %d ms\n", cfg.Actions.SmileRefractoryMs)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("  Encryption:      %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:           %s\n", cfg.Logging.Level)
	fmt.Printf("  File:            %s\n", cfg.Logging.File)

	return nil
}

func cmdVersion(args []string) error {
	fmt.Printf("FaceLock v%s\n", version)
	fmt.Println("Persistent Face Tracking with Action History")
	fmt.Println()
	fmt.Println("Build Information:")
	fmt.Printf("  Go version: %s\n", "1.21+")
	fmt.Printf("  Platform:   linux/amd64\n")
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf("Command: %s\n", cmd.Name)
	fmt.Printf("Description: %s\n", cmd.Description)
	fmt.Printf("Usage: %s\n", cmd.Usage)

	switch cmdName {
	case "track":
		fmt.Println("\nTracking Session:")
		fmt.Println("  The tracker locks onto the given identity when it appears and")
		fmt.Println("  follows it across frames, recording blinks, smiles and lateral")
		fmt.Println("  movement to a per-session history file.")
		fmt.Println("\nInteractive commands (stdin):")
		fmt.Println("  lock      Request a lock on the next verified appearance")
		fmt.Println("  unlock    Release the current lock")
		fmt.Println("  reload    Reload the identity database")
		fmt.Println("  +  /  -   Raise or lower the match threshold by 0.01")
		fmt.Println("  status    Show the current lock state")
		fmt.Println("  quit      Stop tracking (finalizes the history file)")
	case "enroll":
		fmt.Println("\nEnrollment Process:")
		fmt.Println("  1. Position the face in front of the camera")
		fmt.Println("  2. Ensure good lighting")
		fmt.Println("  3. Several samples are captured and embedded")
		fmt.Println("  4. Face data is encrypted and stored locally")
	case "config":
		fmt.Println("\nConfiguration Locations:")
		fmt.Println("  System: /etc/facelock/facelock.yaml")
		fmt.Println("  User:   ~/.config/facelock/facelock.yaml")
		fmt.Println("\nUse -config flag to specify a custom config file.")
	}

	return nil
}
