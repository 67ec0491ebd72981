package hw

import (
	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// EdgeSink receives every level change the GPIO watcher observes on the
// SDI-12 line, matching [sdi12wsn.LineDriver] callers' OnEdge contract.
type EdgeSink interface {
	OnEdge(low bool)
}

// EdgeWatcher feeds line transitions on a GPIO character-device line to
// the core's OnEdge, so the core never touches a register directly
// (spec.md §9 Design Notes). It is the companion to UART: UART carries
// character framing, EdgeWatcher carries break/mark timing.
type EdgeWatcher struct {
	line *gpiocdev.Line
	log  *logrus.Entry
}

// OpenEdgeWatcher requests offset on chip as an input line with
// both-edges detection, delivering every transition to sink.
func OpenEdgeWatcher(chip string, offset int, sink EdgeSink, log *logrus.Entry) (*EdgeWatcher, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &EdgeWatcher{log: log}

	handler := func(evt gpiocdev.LineEvent) {
		switch evt.Type {
		case gpiocdev.LineEventFallingEdge:
			sink.OnEdge(true)
		case gpiocdev.LineEventRisingEdge:
			sink.OnEdge(false)
		}
	}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
	)
	if err != nil {
		return nil, err
	}
	w.line = line
	return w, nil
}

// Close releases the underlying GPIO line request.
func (w *EdgeWatcher) Close() error {
	return w.line.Close()
}
