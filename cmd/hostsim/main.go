// Command hostsim stands in for a DAW host: it opens a duplex PortAudio
// stream, negotiates a fixed block size with the plugin the same way a
// real host negotiates its buffer size at stream-open time, and drives
// Plugin.Process once per callback until interrupted.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"

	plugin "ninjamplugin"
	"ninjamplugin/internal/events"
)

const (
	sampleRate = 48000
	channels   = 2
	blockSize  = 480 // 10ms @ 48kHz
)

func main() {
	server := flag.String("server", "", "ninjam server address, host:port")
	username := flag.String("user", "anonymous", "ninjam username")
	password := flag.String("pass", "", "ninjam password")
	peerCapacity := flag.Int("peers", 16, "max simultaneously subscribed peer channels")
	flag.Parse()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("hostsim: portaudio.Initialize: %v", err)
	}
	defer portaudio.Terminate()

	p := plugin.New()
	if err := p.Activate(plugin.ActivateConfig{
		SampleRate:          sampleRate,
		MaxBlockSize:        blockSize,
		PeerChannelCapacity: *peerCapacity,
	}); err != nil {
		log.Fatalf("hostsim: Activate: %v", err)
	}
	defer p.Deactivate()

	in := make([]float32, blockSize*channels)
	out := make([]float32, blockSize*channels)
	stream, err := portaudio.OpenDefaultStream(channels, channels, float64(sampleRate), blockSize, in, out)
	if err != nil {
		log.Fatalf("hostsim: OpenDefaultStream: %v", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Fatalf("hostsim: Start: %v", err)
	}
	defer stream.Stop()

	if *server != "" {
		if err := p.Connect(*server, *username, *password); err != nil {
			log.Printf("hostsim: Connect: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	inL := make([]float32, blockSize)
	inR := make([]float32, blockSize)
	outL := make([]float32, blockSize)
	outR := make([]float32, blockSize)

	log.Printf("hostsim: running at %d Hz, block=%d", sampleRate, blockSize)
	for {
		select {
		case <-sigCh:
			log.Println("hostsim: stopping")
			return
		default:
		}

		if err := stream.Read(); err != nil {
			log.Printf("hostsim: stream read: %v", err)
			return
		}
		deinterleave(in, inL, inR)

		p.Process(inL, inR, outL, outR, nil)
		drainEvents(p)

		interleave(outL, outR, out)
		if err := stream.Write(); err != nil {
			log.Printf("hostsim: stream write: %v", err)
			return
		}
	}
}

func drainEvents(p *plugin.Plugin) {
	p.DrainEvents(func(ev events.UiEvent) {
		log.Printf("hostsim: event kind=%v state=%v text=%q", ev.Kind, ev.State, ev.Text)
	})
}

func deinterleave(src, l, r []float32) {
	for i := range l {
		l[i] = src[2*i]
		r[i] = src[2*i+1]
	}
}

func interleave(l, r, dst []float32) {
	for i := range l {
		dst[2*i] = l[i]
		dst[2*i+1] = r[i]
	}
}
