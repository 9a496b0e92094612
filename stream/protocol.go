// Package stream carries training checkpoints from a running trainer to a watcher
// over any byte stream, typically a pipe between cmd/train and cmd/watch.
package stream

import (
	"encoding/gob"
	"io"
	"sync"

	"github.com/pkg/errors"

	"polarnet/nn"
)

func init() {
	// Register types for gob encoding
	gob.Register(Event{})
}

// MessageType defines message types for the checkpoint stream
type MessageType int

const (
	MsgCheckpoint MessageType = iota
	MsgDone
	MsgError
)

// Message represents a message on the stream
type Message struct {
	Type    MessageType
	Payload interface{}
}

// Event is one checkpoint of one training timeline. Weights travel in the flat
// codec format of nn.Flatten.
type Event struct {
	Timeline   int
	Index      int
	Activation string
	Input      []float64
	Desired    []float64
	Errors     []float64
	Flat       []float64
}

// Weights decodes the flat weights carried by the event.
func (e *Event) Weights() (nn.Weights, error) {
	return nn.Unflatten(e.Flat)
}

// Protocol handles stream communication. Sends are serialized, so several
// timelines may share one Protocol.
type Protocol struct {
	mu      sync.Mutex
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler. Either side may be nil when the
// protocol is used in one direction only.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	if p.encoder == nil {
		return errors.New("protocol has no writer")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	if p.decoder == nil {
		return nil, errors.New("protocol has no reader")
	}
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendCheckpoint sends one checkpoint event
func (p *Protocol) SendCheckpoint(e Event) error {
	return p.Send(&Message{Type: MsgCheckpoint, Payload: e})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveEvent receives the next checkpoint. It returns io.EOF after Done.
func (p *Protocol) ReceiveEvent() (*Event, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, errors.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case MsgCheckpoint:
	default:
		return nil, errors.Errorf("expected checkpoint message, got %d", msg.Type)
	}
	event, ok := msg.Payload.(Event)
	if !ok {
		return nil, errors.New("invalid checkpoint payload type")
	}
	return &event, nil
}

// Forwarder turns checkpoints of one timeline into events on a Protocol. An
// observer cannot fail, so the first send error is kept and later checkpoints are
// dropped.
type Forwarder struct {
	p          *Protocol
	timeline   int
	activation string

	mu  sync.Mutex
	err error
}

// NewForwarder creates a forwarder for one timeline.
func NewForwarder(p *Protocol, timeline int, activation string) *Forwarder {
	return &Forwarder{p: p, timeline: timeline, activation: activation}
}

// Observer returns the nn.Observer to hand to the training driver.
func (f *Forwarder) Observer() nn.Observer {
	return f.observe
}

func (f *Forwarder) observe(c nn.Checkpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return
	}
	f.err = f.p.SendCheckpoint(Event{
		Timeline:   f.timeline,
		Index:      c.Index,
		Activation: f.activation,
		Input:      c.Input,
		Desired:    c.Desired,
		Errors:     c.Errors,
		Flat:       nn.Flatten(c.Weights),
	})
}

// Err returns the first send error, if any.
func (f *Forwarder) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
