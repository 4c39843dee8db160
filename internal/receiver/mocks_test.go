package receiver

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/roomcall/internal/audio"
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/network"
	"github.com/foxseedlab/roomcall/internal/notify"
	"github.com/foxseedlab/roomcall/internal/repository"
	"github.com/pion/rtp"
)

const testPayloadType = 96

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

type mockInput struct {
	label string

	mu       sync.Mutex
	samples  []int16
	released bool
}

func (in *mockInput) Label() string {
	return in.label
}

func (in *mockInput) WritePCM(pcm []int16) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.released {
		return audio.ErrInputReleased
	}
	in.samples = append(in.samples, pcm...)
	return nil
}

func (in *mockInput) received() []int16 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]int16(nil), in.samples...)
}

type mockMixer struct {
	mu         sync.Mutex
	requestErr error
	inputs     []*mockInput
	requested  int
	released   int
	mixed      [][]byte
	closed     bool
}

func (m *mockMixer) Format() audio.Format {
	return testFormat
}

func (m *mockMixer) RequestInput(label string, format audio.Format) (audio.MixerInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	if format != testFormat {
		return nil, audio.ErrFormatMismatch
	}
	in := &mockInput{label: label}
	m.inputs = append(m.inputs, in)
	m.requested++
	return in, nil
}

func (m *mockMixer) ReleaseInput(in audio.MixerInput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi := in.(*mockInput)
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.released {
		return
	}
	mi.released = true
	m.released++
}

func (m *mockMixer) ActiveInputs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requested - m.released
}

func (m *mockMixer) ReadMixedPCM(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, audio.ErrMixerClosed
	}
	if len(m.mixed) == 0 {
		return 0, nil
	}
	n := copy(buf, m.mixed[0])
	m.mixed = m.mixed[1:]
	return n, nil
}

func (m *mockMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockMixer) setRequestErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestErr = err
}

func (m *mockMixer) lastInput() *mockInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[len(m.inputs)-1]
}

func (m *mockMixer) input(label string) *mockInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.inputs {
		if in.label == label {
			return in
		}
	}
	return nil
}

// mockDecoder decodes big-endian 16-bit samples.
type mockDecoder struct {
	format audio.Format
}

func (d *mockDecoder) Format() audio.Format {
	return d.format
}

func (d *mockDecoder) Decode(payload []byte) ([]int16, error) {
	if len(payload)%2 != 0 {
		return nil, errors.New("odd payload")
	}
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(payload[2*i:]))
	}
	return out, nil
}

func (d *mockDecoder) Close() {}

func newMockDecoder(audio.PayloadFormat) (audio.Decoder, error) {
	return &mockDecoder{format: testFormat}, nil
}

type mockSink struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

func (s *mockSink) WritePCM(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, append([]byte(nil), pcm...))
	return nil
}

func (s *mockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSink) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// loopbackNetwork binds every endpoint on 127.0.0.1 so tests can send to
// it. Multicast endpoints are recorded by group.
type loopbackNetwork struct {
	mu           sync.Mutex
	groups       map[string]net.PacketConn
	groupPorts   map[string]int
	multicastErr error
}

func newLoopbackNetwork() *loopbackNetwork {
	return &loopbackNetwork{
		groups:     make(map[string]net.PacketConn),
		groupPorts: make(map[string]int),
	}
}

func (n *loopbackNetwork) ListenUnicast() (net.PacketConn, error) {
	return net.ListenPacket("udp4", "127.0.0.1:0")
}

func (n *loopbackNetwork) ListenMulticast(group string, port int) (net.PacketConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.multicastErr != nil {
		return nil, n.multicastErr
	}
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	n.groups[group] = conn
	n.groupPorts[group] = port
	return conn, nil
}

func (n *loopbackNetwork) groupAddr(group string) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	conn, ok := n.groups[group]
	if !ok {
		return 0, false
	}
	return network.LocalPort(conn), true
}

type repoCall struct {
	method string
	id     string
	kind   repository.ReceptionKind
	port   int
	ssrc   uint32
}

type mockRepository struct {
	mu    sync.Mutex
	calls []repoCall
}

func (r *mockRepository) StartReception(_ context.Context, input repository.StartReceptionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, repoCall{method: "start", id: input.ID, kind: input.Kind, port: input.Port})
	return nil
}

func (r *mockRepository) RecordSender(_ context.Context, input repository.RecordSenderInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, repoCall{method: "sender", id: input.ReceptionID, ssrc: input.SSRC})
	return nil
}

func (r *mockRepository) EndReception(_ context.Context, input repository.EndReceptionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, repoCall{method: "end", id: input.ReceptionID})
	return nil
}

func (r *mockRepository) ListRecentReceptions(context.Context, int) ([]repository.Reception, error) {
	return nil, nil
}

func (r *mockRepository) recorded() []repoCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repoCall(nil), r.calls...)
}

type mockNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *mockNotifier) Notify(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *mockNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *fatalRecorder) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fatalRecorder) recorded() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

type testEnv struct {
	cfg      *config.Config
	network  *loopbackNetwork
	mixer    *mockMixer
	sink     *mockSink
	repo     *mockRepository
	notifier *mockNotifier
	fatal    *fatalRecorder
}

func testConfig() *config.Config {
	return &config.Config{
		Env:               "development",
		BaseIP:            "224.1.42.",
		RTPMulticastPort:  5000,
		RTPEncodingName:   "L16",
		RTPClockRate:      8000,
		RTPEncodingParams: 1,
		RTPPayloadType:    testPayloadType,
		MixerMaxInputs:    16,
		OutputPath:        "-",
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *testEnv) {
	t.Helper()
	env := &testEnv{
		cfg:      testConfig(),
		network:  newLoopbackNetwork(),
		mixer:    &mockMixer{},
		sink:     &mockSink{},
		repo:     &mockRepository{},
		notifier: &mockNotifier{},
		fatal:    &fatalRecorder{},
	}
	p := NewPipeline(env.cfg, env.network, env.mixer, env.sink, newMockDecoder, env.repo, env.notifier)
	p.runAsync = func(fn func()) { fn() }
	p.SetFatalHandler(env.fatal.record)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start pipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, env
}

func marshalRTP(t *testing.T, ssrc uint32, pt uint8, seq uint16, samples ...int16) []byte {
	t.Helper()
	payload := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.BigEndian.PutUint16(payload[2*i:], uint16(s))
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 160,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal rtp: %v", err)
	}
	return raw
}

func sendRTP(t *testing.T, port int, ssrc uint32, seq uint16, samples ...int16) {
	t.Helper()
	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(marshalRTP(t, ssrc, testPayloadType, seq, samples...)); err != nil {
		t.Fatalf("send rtp: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
