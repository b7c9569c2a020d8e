/*------------------------------------------------------------------------------
* main.go : gnsscorerun, a single-channel acquisition/tracking demo console
*
* wires internal/config, internal/trace and gnss.Channel together over a
* synthetic baseband sample source, printing synchronization records to
* stdout until the requested run length elapses or the channel stops.
* Flag/config handling follows the rtkrcv-style "parse flags, load config,
* start worker, wait" shape of app/rtkrcv/rtkrcv.go.
*-----------------------------------------------------------------------------*/
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sync"

	"gnsscore/gnss"
	"gnsscore/internal/config"
	"gnsscore/internal/trace"
)

func main() {
	prn := flag.Int("prn", 1, "GPS PRN to acquire and track (1-32)")
	delaySamples := flag.Int("delay", 317, "synthetic signal code-phase delay, in samples")
	dopplerHz := flag.Float64("doppler", 1500, "synthetic signal Doppler offset, in Hz")
	noiseSigma := flag.Float64("noise", 0.3, "synthetic per-sample AWGN standard deviation")
	blocks := flag.Int("blocks", 2000, "number of PRN-period blocks to run")
	traceLevel := flag.Int("trace-level", 2, "trace verbosity (spec §6)")
	dumpPath := flag.String("dump", "", "optional tracking dump file path")
	flag.Parse()

	trace.SetLevel(*traceLevel)

	cfg := config.Load(".")

	codeMap := gnss.NewCodePhaseMap()
	acqParams := gnss.AcquisitionParams{
		SampledMs:          cfg.Acquisition.SampledMs,
		MaxDwells:          cfg.Acquisition.MaxDwells,
		DopplerMaxHz:       cfg.Acquisition.DopplerMaxHz,
		DopplerStepHz:      cfg.Acquisition.DopplerStepHz,
		IntermediateFreqHz: cfg.Acquisition.IntermediateFreq,
		SampleRateHz:       cfg.Acquisition.SampleRateHz,
		SamplesPerMs:       cfg.Acquisition.SamplesPerMs,
		SamplesPerCode:     cfg.Acquisition.SamplesPerCode,
		BitTransitionFlag:  cfg.Acquisition.BitTransitionFlag,
		Peak:               cfg.Acquisition.Peak,
		Threshold:          cfg.Acquisition.Threshold,
	}
	trkParams := gnss.TrackingParams{
		SampleRateHz:           cfg.Acquisition.SampleRateHz,
		PLLBandwidthHz:         cfg.Tracking.PLLBandwidthHz,
		DLLBandwidthHz:         cfg.Tracking.DLLBandwidthHz,
		EarlyLateSpaceChips:    cfg.Tracking.EarlyLateSpaceChips,
		CADLLSeedOffsetSamples: cfg.Tracking.CADLLSeedOffsetSample,
	}

	ch, err := gnss.NewChannel(1, *prn, acqParams, trkParams, codeMap)
	if err != nil {
		log.Fatalf("gnsscorerun: failed to build channel: %v", err)
	}
	ch.Activate()

	if *dumpPath != "" {
		d, err := gnss.NewFileDumper(*dumpPath)
		if err != nil {
			log.Fatalf("gnsscorerun: failed to open dump file: %v", err)
		}
		defer d.Close()
		ch.SetDumper(d)
	}

	src := newSyntheticSource(*prn, *delaySamples, *dopplerHz, acqParams.SampleRateHz, *noiseSigma)

	recs := make(chan gnss.SyncRecord, 64)
	msgs := make(chan gnss.ControlMsg, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(recs)
		defer close(msgs)
		for i := 0; i < *blocks && ch.Stage() != gnss.StageStopped; i++ {
			n := ch.RequiredBlockLen()
			if n == 0 {
				return
			}
			block, err := src.Next(n)
			if err != nil {
				trace.Warnf("gnsscorerun: sample source error: %v\n", err)
				return
			}
			_, rs, ms, err := ch.Process(block)
			if err != nil {
				trace.Warnf("gnsscorerun: channel process error: %v\n", err)
				continue
			}
			for _, r := range rs {
				recs <- r
			}
			for _, m := range ms {
				msgs <- m
			}
		}
		ch.Stop()
	}()

	done := make(chan struct{})
	go func() {
		for recs != nil || msgs != nil {
			select {
			case r, ok := <-recs:
				if !ok {
					recs = nil
					continue
				}
				fmt.Printf("prn=%d t=%.6f doppler=%.2f cn0=%.1f valid=%v\n",
					r.PRN, r.TrackingTimestampSecs, r.CarrierDopplerHz, r.CN0dBHz, r.FlagValidTracking)
			case m, ok := <-msgs:
				if !ok {
					msgs = nil
					continue
				}
				fmt.Fprintf(os.Stderr, "control: channel=%d kind=%d\n", m.Channel, m.Kind.Code())
			}
		}
		close(done)
	}()

	wg.Wait()
	<-done
}

// syntheticSource generates baseband samples containing one PRN's C/A code
// at a fixed code-phase delay and Doppler offset plus white Gaussian noise,
// for exercising the acquisition/tracking pipeline without live RF capture.
type syntheticSource struct {
	prn          int
	delaySamples int
	dopplerHz    float64
	fsHz         float64
	noiseSigma   float64

	code   []complex64
	rng    *rand.Rand
	cursor uint64
}

func newSyntheticSource(prn, delaySamples int, dopplerHz, fsHz, noiseSigma float64) *syntheticSource {
	chips := make([]int8, gnss.CACodeLength)
	if err := gnss.GenerateCACode(prn, chips); err != nil {
		log.Fatalf("gnsscorerun: invalid PRN %d: %v", prn, err)
	}
	return &syntheticSource{
		prn:          prn,
		delaySamples: delaySamples,
		dopplerHz:    dopplerHz,
		fsHz:         fsHz,
		noiseSigma:   noiseSigma,
		code:         chipsToComplex(chips),
		rng:          rand.New(rand.NewSource(1)),
	}
}

func chipsToComplex(chips []int8) []complex64 {
	out := make([]complex64, len(chips))
	for i, c := range chips {
		out[i] = complex(float32(c), 0)
	}
	return out
}

func (s *syntheticSource) Next(n int) ([]complex64, error) {
	out := make([]complex64, n)
	chipsPerCode := len(s.code)
	for i := 0; i < n; i++ {
		sampleIdx := s.cursor + uint64(i)
		chipIdx := ((int(sampleIdx)%chipsPerCode - s.delaySamples%chipsPerCode) + chipsPerCode) % chipsPerCode
		phase := 2 * math.Pi * s.dopplerHz * float64(sampleIdx) / s.fsHz
		carrier := complex(math.Cos(phase), math.Sin(phase))
		signal := s.code[chipIdx] * complex64(carrier)
		noise := complex64(complex(s.rng.NormFloat64()*s.noiseSigma, s.rng.NormFloat64()*s.noiseSigma))
		out[i] = signal + noise
	}
	s.cursor += uint64(n)
	return out, nil
}
