package pipeline

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yegors/livescribe/internal/audio"
	"github.com/yegors/livescribe/internal/capture"
	"github.com/yegors/livescribe/internal/dispatch"
	"github.com/yegors/livescribe/internal/transcript"
	"github.com/yegors/livescribe/internal/transcription"
	"github.com/yegors/livescribe/pkg/logger"
)

// toneSegment builds a WAV segment of constant-amplitude 16 kHz mono audio
func toneSegment(t *testing.T, amplitude int16, samples int) []byte {
	t.Helper()
	raw := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(amplitude))
	}
	segment, err := audio.EncodeSegment(raw, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeSegment failed: %v", err)
	}
	return segment
}

// transcribeServer records uploads and serves canned candidate lists
type transcribeServer struct {
	mu       sync.Mutex
	bodies   [][]byte
	status   int
	response string
	uploaded chan struct{}
}

func newTranscribeServer(response string) (*transcribeServer, *httptest.Server) {
	ts := &transcribeServer{
		status:   http.StatusOK,
		response: response,
		uploaded: make(chan struct{}, 16),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.mu.Lock()
		ts.bodies = append(ts.bodies, body)
		status := ts.status
		ts.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "boom", status)
		} else {
			w.Write([]byte(ts.response))
		}
		ts.uploaded <- struct{}{}
	}))
	return ts, server
}

func (ts *transcribeServer) uploads() [][]byte {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([][]byte, len(ts.bodies))
	copy(out, ts.bodies)
	return out
}

func (ts *transcribeServer) waitForUpload(t *testing.T) {
	t.Helper()
	select {
	case <-ts.uploaded:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for upload")
	}
}

// buildPipeline wires converter, client, log and dispatcher against the server
func buildPipeline(endpointURL string, window time.Duration) (*dispatch.Dispatcher, *transcript.Log, *audio.Converter) {
	log := logger.NewNop()
	converter := audio.NewConverter(16000, log)
	client := transcription.NewClient(endpointURL, "", 5, log)
	transcriptLog := transcript.NewLog(log)
	p := New(context.Background(), converter, client, transcriptLog, log)
	return dispatch.NewDispatcher(window, p.Process, log), transcriptLog, converter
}

func TestOverlappingSegmentsOnlyLastUploaded(t *testing.T) {
	ts, server := newTranscribeServer(`{"transcriptions": ["ok"]}`)
	defer server.Close()

	dispatcher, transcriptLog, converter := buildPipeline(server.URL, 50*time.Millisecond)
	defer converter.Close()
	defer dispatcher.Cancel()

	// Two segments arrive before the debounce settles
	dispatcher.Submit(toneSegment(t, 1000, 800))
	dispatcher.Submit(toneSegment(t, 2000, 800))

	ts.waitForUpload(t)
	time.Sleep(150 * time.Millisecond)

	uploads := ts.uploads()
	if len(uploads) != 1 {
		t.Fatalf("Expected exactly 1 upload, got %d", len(uploads))
	}

	// The uploaded PCM must come from the second segment
	if first := int16(binary.LittleEndian.Uint16(uploads[0])); first != 2000 {
		t.Errorf("Expected PCM from the last segment (amplitude 2000), got first sample %d", first)
	}

	if got := transcriptLog.Len(); got != 1 {
		t.Errorf("Expected 1 accepted transcription, got %d", got)
	}
}

func TestUploadFailureLeavesLogUnchanged(t *testing.T) {
	ts, server := newTranscribeServer(`{"transcriptions": ["never delivered"]}`)
	ts.status = http.StatusInternalServerError
	defer server.Close()

	dispatcher, transcriptLog, converter := buildPipeline(server.URL, 20*time.Millisecond)
	defer converter.Close()
	defer dispatcher.Cancel()

	dispatcher.Submit(toneSegment(t, 1000, 800))
	ts.waitForUpload(t)
	time.Sleep(100 * time.Millisecond)

	if got := transcriptLog.Len(); got != 0 {
		t.Fatalf("Failed upload must not modify the log, got %d entries", got)
	}
}

func TestUndecodableSegmentIsSkipped(t *testing.T) {
	ts, server := newTranscribeServer(`{"transcriptions": ["nope"]}`)
	defer server.Close()

	dispatcher, transcriptLog, converter := buildPipeline(server.URL, 20*time.Millisecond)
	defer converter.Close()
	defer dispatcher.Cancel()

	dispatcher.Submit([]byte("not a wav segment"))
	time.Sleep(150 * time.Millisecond)

	if uploads := ts.uploads(); len(uploads) != 0 {
		t.Fatalf("Undecodable segment must not be uploaded, got %d uploads", len(uploads))
	}
	if got := transcriptLog.Len(); got != 0 {
		t.Errorf("Expected empty log, got %d entries", got)
	}
}

func TestDuplicateResponsesAcrossChunks(t *testing.T) {
	ts, server := newTranscribeServer(`{"transcriptions": ["same text"]}`)
	defer server.Close()

	dispatcher, transcriptLog, converter := buildPipeline(server.URL, 20*time.Millisecond)
	defer converter.Close()
	defer dispatcher.Cancel()

	dispatcher.Submit(toneSegment(t, 500, 400))
	ts.waitForUpload(t)
	time.Sleep(80 * time.Millisecond)

	dispatcher.Submit(toneSegment(t, 600, 400))
	ts.waitForUpload(t)
	time.Sleep(80 * time.Millisecond)

	// Both chunks uploaded, but the identical candidate is appended once
	if uploads := ts.uploads(); len(uploads) != 2 {
		t.Fatalf("Expected 2 uploads, got %d", len(uploads))
	}
	if got := transcriptLog.Len(); got != 1 {
		t.Errorf("Expected 1 entry after duplicate responses, got %d", got)
	}
}

// endToEnd: a capture session driving the full stack through a fake source
type fakeSource struct {
	mu        sync.Mutex
	onSegment func([]byte)
}

func (f *fakeSource) Start(ctx context.Context, onSegment func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSegment = onSegment
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSegment = nil
	return nil
}

func (f *fakeSource) emit(segment []byte) {
	f.mu.Lock()
	cb := f.onSegment
	f.mu.Unlock()
	if cb != nil {
		cb(segment)
	}
}

func TestEndToEndCaptureSession(t *testing.T) {
	ts, server := newTranscribeServer(`{"transcriptions": ["partial", "full sentence"]}`)
	defer server.Close()

	log := logger.NewNop()
	converter := audio.NewConverter(16000, log)
	client := transcription.NewClient(server.URL, "", 5, log)
	transcriptLog := transcript.NewLog(log)
	p := New(context.Background(), converter, client, transcriptLog, log)
	dispatcher := dispatch.NewDispatcher(50*time.Millisecond, p.Process, log)

	source := &fakeSource{}
	controller := capture.NewController(context.Background(), source, dispatcher, converter, log)

	if err := controller.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Two segments in one burst: only the second survives the debounce
	source.emit(toneSegment(t, 1000, 800))
	source.emit(toneSegment(t, 2000, 800))

	ts.waitForUpload(t)
	time.Sleep(150 * time.Millisecond)

	entries := transcriptLog.Snapshot()
	if len(entries) != 1 || entries[0].Text != "full sentence" {
		t.Fatalf("Expected the authoritative candidate to be accepted, got %+v", entries)
	}

	controller.Teardown()

	// After teardown nothing else fires
	source.emit(toneSegment(t, 3000, 800))
	dispatcher.Submit(toneSegment(t, 3000, 800))
	time.Sleep(150 * time.Millisecond)

	if uploads := ts.uploads(); len(uploads) != 1 {
		t.Errorf("Expected no uploads after teardown, got %d total", len(uploads))
	}
}
