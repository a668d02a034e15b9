// SPDX-License-Identifier: GPL-2.0-or-later

// Command govox is a small player exercising the voice manager end to
// end: every file argument becomes a streaming source competing for the
// device's voices.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gopxl/beep/v2"

	"govox/handle"
	"govox/snd"
	"govox/voice/beepdev"
)

var (
	voices = flag.Int("voices", 4, "physical voices to request")
	volume = flag.Float64("volume", 1, "master volume")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatal("usage: govox [flags] file...")
	}

	dev, err := beepdev.New(beep.SampleRate(44100), 50*time.Millisecond)
	if err != nil {
		log.Fatalf("open audio device: %v", err)
	}
	m, err := snd.New(snd.Config{Device: dev, Voices: *voices})
	if err != nil {
		log.Fatalf("voice manager: %v", err)
	}
	defer m.Shutdown()
	m.SetMasterVolume(float32(*volume))

	desc := &snd.Description{
		Volume:      1,
		IsStreaming: true,
		Channel:     snd.ChannelMusic,
	}
	// a stream that plays out on its own is restarted by the manager,
	// so stop each source once its known duration has passed
	deadlines := make(map[handle.Handle]time.Time)
	for _, name := range flag.Args() {
		h := m.CreateSource(desc, name, nil, nil)
		if h == handle.Null {
			log.Printf("cannot play %s", name)
			continue
		}
		m.Play(h)
		d := time.Duration(m.StreamDuration(h) * float32(time.Second))
		deadlines[h] = time.Now().Add(d)
	}
	if len(deadlines) == 0 {
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-interrupt:
			return
		case <-tick.C:
			m.Tick()
			for h, deadline := range deadlines {
				if time.Now().After(deadline) {
					m.Stop(h)
					delete(deadlines, h)
				}
			}
			if len(deadlines) == 0 {
				return
			}
		}
	}
}
