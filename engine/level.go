package engine

import (
	"math"

	"github.com/patchgrid/patchgrid"
	"github.com/viterin/vek/vek32"
)

type (
	// Level is the output level detector, run in its own goroutine. It
	// receives the rendered master audio from the engine through the broker,
	// computes per-channel peak and RMS and posts the result to the control
	// layer. It lives entirely off the audio thread.
	Level struct {
		broker *Broker
		tmp    [2][]float32
		sq     []float32
	}

	// LevelResult is one block's worth of master output levels, linear.
	LevelResult struct {
		Peak [2]float32
		RMS  [2]float32
	}
)

func NewLevel(broker *Broker) *Level {
	return &Level{broker: broker}
}

// Run processes messages until CloseLevel is signaled. Typically run as
// "go level.Run()"; FinishedLevel is closed on the way out.
func (l *Level) Run() {
	for {
		select {
		case msg := <-l.broker.ToLevel:
			if msg.Reset {
				l.tmp[0] = l.tmp[0][:0]
				l.tmp[1] = l.tmp[1][:0]
			}
			switch data := msg.Data.(type) {
			case *patchgrid.AudioBuffer:
				result := l.analyze(*data)
				l.broker.PutAudioBuffer(data)
				TrySend(l.broker.ToModel, MsgToModel{Data: result})
			case func():
				data()
			}
		case <-l.broker.CloseLevel:
			close(l.broker.FinishedLevel)
			return
		}
	}
}

func (l *Level) analyze(buf patchgrid.AudioBuffer) LevelResult {
	var result LevelResult
	if len(buf) == 0 {
		return result
	}
	for chn := 0; chn < 2; chn++ {
		l.tmp[chn] = l.tmp[chn][:0]
		for _, frame := range buf {
			l.tmp[chn] = append(l.tmp[chn], frame[chn])
		}
		if cap(l.sq) < len(l.tmp[chn]) {
			l.sq = make([]float32, len(l.tmp[chn]))
		}
		power := vek32.Mean(vek32.Mul_Into(l.sq[:len(l.tmp[chn])], l.tmp[chn], l.tmp[chn]))
		result.RMS[chn] = float32(math.Sqrt(float64(power)))
		vek32.Abs_Inplace(l.tmp[chn])
		result.Peak[chn] = vek32.Max(l.tmp[chn])
	}
	return result
}
