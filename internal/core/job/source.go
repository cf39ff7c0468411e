package job

import (
	"context"
	"sync"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// fanoutSource adapts one codec.Reader into scheduler.Source: the reader's
// single interleaved packet stream is demultiplexed once, here, rather than
// opening it a second time per stream — a redesign from the original
// two-readers-per-job approach — and buffered per stream index so a video
// burst pulling ahead of the audio burst never discards the audio packets
// it passes over.
type fanoutSource struct {
	reader codec.Reader

	mu     sync.Mutex
	queues map[int][]model.Packet
	eof    bool
}

func newFanoutSource(reader codec.Reader) *fanoutSource {
	return &fanoutSource{reader: reader, queues: make(map[int][]model.Packet)}
}

func (f *fanoutSource) ReadPacket(ctx context.Context, streamIndex int) (model.Packet, bool, *model.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if q := f.queues[streamIndex]; len(q) > 0 {
			pkt := q[0]
			f.queues[streamIndex] = q[1:]
			return pkt, true, nil
		}
		if f.eof {
			return model.Packet{}, false, nil
		}
		pkt, ok, err := f.reader.ReadPacket(ctx)
		if err != nil {
			return model.Packet{}, false, err
		}
		if !ok {
			f.eof = true
			continue
		}
		f.queues[pkt.StreamIndex] = append(f.queues[pkt.StreamIndex], pkt)
	}
}
