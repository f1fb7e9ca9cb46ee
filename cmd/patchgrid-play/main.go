package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/patchgrid/patchgrid"
	"github.com/patchgrid/patchgrid/engine"
	"github.com/patchgrid/patchgrid/midi"
	"github.com/patchgrid/patchgrid/mods"
	"github.com/patchgrid/patchgrid/oto"
	"github.com/patchgrid/patchgrid/rpc"
	"github.com/patchgrid/patchgrid/version"
)

func main() {
	play := flag.Bool("p", false, "Play the patch (default behaviour when no other output is defined).")
	wavOut := flag.Bool("w", false, "Render the patch to a .wav file next to the input file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	seconds := flag.Float64("l", 10, "Length of the rendered or played audio, in seconds.")
	sampleRate := flag.Int("rate", 44100, "Sample rate.")
	blockSize := flag.Int("block", 256, "Audio block size in frames.")
	preset := flag.String("preset", "", "Load a builtin or user preset by name instead of a file.")
	listPresets := flag.Bool("presets", false, "List the available presets and exit.")
	midiPrefix := flag.String("midi", "", "Open the first MIDI input whose name starts with this prefix and route it to the first midiin module.")
	firstMidi := flag.Bool("m", false, "Open the first available MIDI input.")
	syncAddress := flag.String("sync", "", "Send the transport state to another patchgrid instance at this address.")
	syncPort := flag.Int("syncport", 31337, "Port used for transport sync.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *listPresets {
		for _, p := range mods.LoadPresets() {
			kind := "builtin"
			if p.User {
				kind = "user"
			}
			fmt.Printf("%s (%s)\n", p.Name, kind)
		}
		os.Exit(0)
	}
	if !*wavOut {
		*play = true
	}

	doc, name, err := loadInput(*preset, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	broker := engine.NewBroker()
	e := engine.NewEngine(broker, *sampleRate, *blockSize)
	defer e.Close()
	if err := e.LoadDocument(doc); err != nil {
		fmt.Fprintf(os.Stderr, "could not load patch: %v\n", err)
		os.Exit(1)
	}
	e.Play()

	var sync chan<- patchgrid.TransportState
	if *syncAddress != "" {
		sync, err = rpc.Sender(*syncAddress, *syncPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "transport sync unavailable: %v\n", err)
		}
	}
	go drainModel(broker, sync)

	if *wavOut {
		if err := renderWav(e, name, *seconds, *pcm, *sampleRate, *blockSize); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	if *play {
		if err := playPatch(e, broker, *midiPrefix, *firstMidi, *seconds, *sampleRate, *blockSize); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
}

func loadInput(preset, path string) (*patchgrid.Document, string, error) {
	if preset != "" {
		p, ok := mods.LoadPresets().ByName(preset)
		if !ok {
			return nil, "", fmt.Errorf("no preset named %q", preset)
		}
		doc := p.Doc.Copy()
		return &doc, strings.ReplaceAll(p.Name, " ", "_"), nil
	}
	if path == "" {
		printUsage()
		os.Exit(0)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open %v: %w", path, err)
	}
	defer f.Close()
	doc, err := patchgrid.ReadDocument(f)
	if err != nil {
		return nil, "", fmt.Errorf("could not parse %v: %w", path, err)
	}
	name := strings.TrimSuffix(path, filepath.Ext(path))
	return doc, name, nil
}

func renderWav(e *engine.Engine, name string, seconds float64, pcm bool, sampleRate, blockSize int) error {
	frames := int(seconds * float64(sampleRate))
	rendered := make(patchgrid.AudioBuffer, 0, frames)
	block := make(patchgrid.AudioBuffer, blockSize)
	for len(rendered) < frames {
		e.ProcessBlock(block)
		rendered = append(rendered, block...)
	}
	wav, err := patchgrid.Wav(rendered[:frames], pcm, sampleRate)
	if err != nil {
		return fmt.Errorf("could not generate .wav: %w", err)
	}
	if err := os.WriteFile(name+".wav", wav, 0644); err != nil {
		return fmt.Errorf("could not write .wav: %w", err)
	}
	return nil
}

func playPatch(e *engine.Engine, broker *engine.Broker, midiPrefix string, firstMidi bool, seconds float64, sampleRate, blockSize int) error {
	audioContext, err := oto.NewContext(sampleRate, blockSize)
	if err != nil {
		return fmt.Errorf("could not acquire audio context: %w", err)
	}
	defer audioContext.Close()

	if midiPrefix != "" || firstMidi {
		midiContext := midi.NewContext(e)
		defer midiContext.Close()
		if id, ok := findMidiIn(e); ok {
			midiContext.SetTarget(id)
		}
		midiContext.TryToOpenBy(midiPrefix, firstMidi)
	}

	level := engine.NewLevel(broker)
	go level.Run()
	defer func() {
		engine.TrySend(broker.CloseLevel, struct{}{})
		engine.TimeoutReceive(broker.FinishedLevel, 3*time.Second)
	}()

	closer := audioContext.Play(e.ProcessBlock)
	defer closer.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	case <-interrupt:
	}
	return nil
}

func findMidiIn(e *engine.Engine) (int, bool) {
	for _, m := range e.SaveDocument().Modules {
		if m.Type == "midiin" {
			return m.ID, true
		}
	}
	return 0, false
}

// drainModel keeps the control channel from backing up and forwards the
// transport to a sync peer when one is configured.
func drainModel(broker *engine.Broker, sync chan<- patchgrid.TransportState) {
	for msg := range broker.ToModel {
		switch data := msg.Data.(type) {
		case engine.Alert:
			fmt.Fprintf(os.Stderr, "%s: %s\n", data.Name, data.Message)
		case engine.TimelineMasterLostMsg:
			fmt.Fprintf(os.Stderr, "timeline master %v lost, following internal clock\n", data.ID)
		}
		if sync != nil && msg.HasTransport {
			select {
			case sync <- msg.Transport:
			default:
			}
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Patchgrid command line utility for playing .yml/.json patch files.\nUsage: %s [flags] [path]\n", os.Args[0])
	flag.PrintDefaults()
}
