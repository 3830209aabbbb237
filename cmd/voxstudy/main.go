// Command voxstudy is a terminal client for the study assistant. Text goes
// straight to chat; voice mode records from the microphone, transcribes on
// the server and speaks replies back.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/voxstudy/voxstudy/pkg/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voxstudy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	baseURL := os.Getenv("VOXSTUDY_SERVER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	logLevel := slog.LevelWarn
	if os.Getenv("VOXSTUDY_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nGoodbye!")
		cancel()
		os.Exit(0)
	}()

	backend := client.NewAPIClient(baseURL)
	session, err := backend.NewSession(ctx, "Terminal Study Session")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Printf("Started session %s\n", session.ID)

	player := client.NewOtoPlayer()
	recorder := client.NewRecorder(client.NewMalgoDevice(), client.DeviceConfig{
		SampleRate:       client.DefaultSampleRate,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})

	strategies := []client.PlaybackStrategy{
		&client.SynthesisAPIStrategy{Backend: backend, Player: player},
		&client.LocalEngineStrategy{},
	}

	ui := &terminalUI{out: os.Stdout}
	ctrl := client.NewController(session.ID, recorder, backend, ui, strategies,
		client.WithLogger(logger))
	defer ctrl.Close()

	fmt.Println("Type a question and press Enter. Commands: /voice, /replay, /quit")
	fmt.Println(strings.Repeat("-", 50))

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "/quit":
			fmt.Println("Goodbye!")
			return nil
		case line == "/replay":
			ctrl.ReplayLast(ctx)
		case line == "/voice":
			if err := voiceTurn(ctx, ctrl); err != nil {
				fmt.Printf("voice input unavailable: %v\n", err)
			}
		default:
			ctrl.SendText(ctx, line)
		}
	}
}

// voiceTurn records one utterance; any key stops recording and sends it for
// transcription. Raw mode is needed to catch single keypresses.
func voiceTurn(ctx context.Context, ctrl *client.Controller) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}

	ctrl.ToggleRecording(ctx)
	if ctrl.State() != client.StateRecording {
		return nil // the UI already reported why
	}
	fmt.Print("recording... press any key to stop\r\n")

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		ctrl.ToggleRecording(ctx)
		return fmt.Errorf("raw mode: %w", err)
	}
	buf := make([]byte, 1)
	_, readErr := os.Stdin.Read(buf)
	term.Restore(fd, oldState)
	if readErr != nil {
		return fmt.Errorf("read key: %w", readErr)
	}

	ctrl.ToggleRecording(ctx)
	return nil
}

// terminalUI renders controller events as plain lines.
type terminalUI struct {
	out io.Writer
}

func (u *terminalUI) AppendEntry(e client.Entry) {
	prefix := "Buddy"
	if e.Sender == client.SenderUser {
		prefix = "You"
	}
	if e.Err {
		fmt.Fprintf(u.out, "%s (error): %s\n", prefix, e.Text)
		return
	}
	fmt.Fprintf(u.out, "%s: %s\n", prefix, e.Text)
}

func (u *terminalUI) ShowThinking() { fmt.Fprintln(u.out, "thinking...") }

func (u *terminalUI) HideThinking() {}

func (u *terminalUI) Notify(msg string) { fmt.Fprintf(u.out, "[!] %s\n", msg) }

func (u *terminalUI) Alert(msg string) { fmt.Fprintf(u.out, "[!!] %s\n", msg) }

func (u *terminalUI) ShowRecommendations(recs []string) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(u.out, "Recommendations:")
	for _, r := range recs {
		fmt.Fprintf(u.out, "  - %s\n", r)
	}
}

func (u *terminalUI) SetReplayEnabled(bool) {}

func (u *terminalUI) StateChanged(client.State) {}
