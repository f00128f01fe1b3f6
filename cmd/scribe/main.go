// Command scribe is the live dictation recorder.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"github.com/scribe-notes/scribe/internal/app"
	"github.com/scribe-notes/scribe/internal/audio"
	"github.com/scribe-notes/scribe/internal/config"
	"github.com/scribe-notes/scribe/internal/daemon"
	"github.com/scribe-notes/scribe/internal/db"
	"github.com/scribe-notes/scribe/internal/handoff"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/recognizer"
	"github.com/scribe-notes/scribe/internal/recording"
	"github.com/scribe-notes/scribe/internal/transcript"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "YAML configuration file (default: built-in defaults)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	patientFlag := flag.String("patient", "", "Patient ID the dictation belongs to")
	backendFlag := flag.String("backend", "", "Recognizer backend: daemon or vosk (overrides config)")
	localeFlag := flag.String("locale", "", "Recognition locale, e.g. en-US (overrides config)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	inputFlag := flag.String("input", "", "Read 16 kHz mono PCM or WAV from this file instead of the microphone (vosk backend)")
	devicesFlag := flag.Bool("devices", false, "List capture devices and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scribe %s\n", version)
		return
	}
	if *devicesFlag {
		devices, err := audio.Devices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Recognizer.Backend = *backendFlag
	}
	if *localeFlag != "" {
		cfg.Recognizer.Locale = *localeFlag
	}
	if *deviceFlag != "" {
		cfg.Recognizer.Device = *deviceFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *patientFlag != "" {
		if err := handoff.ValidatePatientID(*patientFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if err := run(cfg, *patientFlag, *inputFlag); err != nil {
		log.Errorf("scribe: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, patientID, input string) error {
	var archive *recording.Archive
	if cfg.Recording.Enabled {
		archive = recording.NewArchive(cfg.Recording.Dir)
	}

	var src audio.Source
	if cfg.Recognizer.Backend == config.BackendVosk {
		if input != "" {
			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()
			src = audio.NewReaderSource(f, true)
		} else {
			src = audio.NewMicrophone(cfg.Recognizer.Device)
		}
	}

	rec, err := newRecognizer(cfg, src, archive)
	if err != nil {
		return err
	}
	defer rec.Close()

	sinks, closers := newSinks(cfg)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	m := app.New(app.Options{
		Recognizer: rec,
		Sink:       sinks,
		Archive:    archive,
		Transcript: transcript.Options{
			Separator:       cfg.Transcript.Separator,
			RestartDelay:    cfg.Transcript.RestartDelay,
			MaxRestartDelay: cfg.Transcript.MaxRestartDelay,
		},
		PatientID: patientID,
		Locale:    cfg.Recognizer.Locale,
		Backend:   cfg.Recognizer.Backend,
	})

	log.Info("scribe " + version + " started")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func newRecognizer(cfg *config.Config, src audio.Source, archive *recording.Archive) (recognizer.Recognizer, error) {
	switch cfg.Recognizer.Backend {
	case config.BackendDaemon:
		socket := cfg.Recognizer.Socket
		if socket == "" {
			socket = daemon.SocketPath()
		}
		return recognizer.NewDaemon(socket, cfg.Recognizer.Locale, cfg.Recognizer.Device)
	case config.BackendVosk:
		vc := recognizer.VoskConfig{
			ServerURL:      cfg.Recognizer.Vosk.ServerURL,
			SampleRate:     cfg.Recognizer.Vosk.SampleRate,
			SilenceTimeout: cfg.Recognizer.Vosk.SilenceTimeout,
		}
		if archive != nil {
			vc.Tap = archive.Write
		}
		return recognizer.NewVosk(vc, src)
	}
	return nil, fmt.Errorf("%w: backend %q", recognizer.ErrUnsupported, cfg.Recognizer.Backend)
}

// newSinks opens every configured hand-off target. A target that cannot be
// reached is logged and skipped so dictation still works.
func newSinks(cfg *config.Config) (handoff.Multi, []io.Closer) {
	var sinks handoff.Multi
	var closers []io.Closer

	if cfg.Handoff.Database != "" {
		store, err := db.Open(cfg.Handoff.Database)
		if err != nil {
			log.Warnf("sqlite hand-off disabled: %v", err)
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store)
		}
	}

	if r := cfg.Handoff.Redis; r.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
		sink := handoff.NewRedis(client, r.Prefix, r.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := sink.Ping(ctx)
		cancel()
		if err != nil {
			log.Warnf("redis hand-off disabled: %v", err)
			client.Close()
		} else {
			sinks = append(sinks, sink)
			closers = append(closers, client)
		}
	}

	if cfg.Handoff.Clipboard {
		cb := handoff.NewClipboard()
		if cb.Available() {
			sinks = append(sinks, cb)
		} else {
			log.Warnf("clipboard hand-off disabled: no clipboard utility found")
		}
	}
	return sinks, closers
}
