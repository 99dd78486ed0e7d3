package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"studai/internal/compositor"
	"studai/internal/jobs"
	"studai/internal/media/ffprobe"
	"studai/internal/notifications"
	"studai/internal/services"
	"studai/internal/storage"
	"studai/internal/testsupport"
	"studai/internal/workflow"
)

type fakeStore struct {
	mu      sync.Mutex
	uploads []string
	fail    map[string]error
}

func (s *fakeStore) Driver() string { return "fake" }

func (s *fakeStore) Upload(_ context.Context, localPath, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, err := range s.fail {
		if strings.HasPrefix(name, prefix) {
			return "", err
		}
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, name)
	return "https://blob.test/" + name, nil
}

func (s *fakeStore) Download(_ context.Context, _ string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("%PDF-1.4"), 0o644)
}

func (s *fakeStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

type fakeExtractor struct {
	text string
	err  error
}

func (e fakeExtractor) Extract(context.Context, string) (string, error) { return e.text, e.err }

type fakeScripts struct {
	script string
	err    error

	mu     sync.Mutex
	source string
}

func (f *fakeScripts) lastSource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeScripts) GenerateScript(_ context.Context, source, _ string) (string, error) {
	f.mu.Lock()
	f.source = source
	f.mu.Unlock()
	return f.script, f.err
}

type fakeSpeech struct {
	err   error
	block chan struct{}

	mu     sync.Mutex
	called bool
}

func (f *fakeSpeech) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

func (f *fakeSpeech) Synthesize(ctx context.Context, _, _, outputPath string) (string, string, error) {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", "", f.err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", "", err
	}
	return outputPath, "spanish", os.WriteFile(outputPath, []byte("mp3"), 0o644)
}

type fakeComposer struct {
	err   error
	delay time.Duration
}

func (f fakeComposer) Compose(_ context.Context, req compositor.Request) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", err
	}
	return req.Output, os.WriteFile(req.Output, []byte("mp4"), 0o644)
}

type harness struct {
	manager  *workflow.Manager
	registry jobs.Registry
	store    *fakeStore
	scripts  *fakeScripts
	speech   *fakeSpeech
}

func newHarness(t *testing.T, mutate func(*workflow.Dependencies)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBaseVideo())
	registry := jobs.NewMemoryRegistry()
	h := &harness{
		registry: registry,
		store:    &fakeStore{},
		scripts:  &fakeScripts{script: "[SP] Hola clase"},
		speech:   &fakeSpeech{},
	}
	deps := workflow.Dependencies{
		Extractor:  fakeExtractor{text: "source text"},
		Scripts:    h.scripts,
		Speech:     h.speech,
		Compositor: fakeComposer{},
		Store:      h.store,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.manager = workflow.NewManager(cfg, registry, deps, nil)
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { h.manager.Stop(time.Second) })
	return h
}

func (h *harness) submit(t *testing.T, sub workflow.Submission) (*jobs.Job, *testsupport.Recorder) {
	t.Helper()
	rec := testsupport.NewRecorder()
	sub.Destination = rec
	job, err := h.manager.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != jobs.StatusQueued {
		t.Fatalf("submitted job status = %s", job.Status)
	}
	return job, rec
}

func waitDone(t *testing.T, rec *testsupport.Recorder) {
	t.Helper()
	select {
	case <-rec.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("no terminal event; got %v", rec.Stages())
	}
}

func TestPipelineWithDocumentCompletes(t *testing.T) {
	h := newHarness(t, nil)
	doc := testsupport.WriteText(t, filepath.Join(t.TempDir(), "lesson.pdf"), "%PDF-1.4")
	job, rec := h.submit(t, workflow.Submission{DocumentPath: doc, Instruction: "make it fun"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Status != jobs.StatusCompleted || final.Result == nil {
		t.Fatalf("unexpected final job %+v", final)
	}
	fileID := job.ID + "_lesson.pdf"
	want := []string{
		"files/" + fileID,
		"audio/" + fileID + "_spanish.mp3",
		"videos/" + fileID + "_final_video_spanish.mp4",
	}
	if got := h.store.names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("uploads = %v, want %v", got, want)
	}
	res := final.Result
	if res.VideoURL == nil || *res.VideoURL != "https://blob.test/"+want[2] {
		t.Fatalf("video url = %v", res.VideoURL)
	}
	if res.PDFName != fileID || res.PDFBlobURL != "https://blob.test/"+want[0] || res.Topic != "" {
		t.Fatalf("unexpected document fields %+v", res)
	}
	if res.Script != "[SP] Hola clase" || res.Language != "spanish" || res.VideoError != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.scripts.lastSource() != "source text" {
		t.Fatalf("script source = %q", h.scripts.lastSource())
	}

	wantStages := []notifications.Stage{
		notifications.StageStart,
		notifications.StagePDFExtraction,
		notifications.StageScriptGeneration,
		notifications.StageTTSGeneration,
		notifications.StageAudioUpload,
		notifications.StageVideoEditing,
		notifications.StageUploading,
		notifications.StageCompleted,
	}
	if got := rec.Stages(); !reflect.DeepEqual(got, wantStages) {
		t.Fatalf("stages = %v, want %v", got, wantStages)
	}
	for _, event := range rec.Events() {
		if event.JobID != job.ID || event.Timestamp.IsZero() {
			t.Fatalf("event missing job id or timestamp: %+v", event)
		}
	}
}

func TestPipelineTopicOnlySkipsExtraction(t *testing.T) {
	h := newHarness(t, nil)
	job, rec := h.submit(t, workflow.Submission{Instruction: "black holes"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Result.Topic != "black holes" || final.Result.PDFName != "" {
		t.Fatalf("unexpected result %+v", final.Result)
	}
	if h.scripts.lastSource() != "" {
		t.Fatalf("expected empty source text, got %q", h.scripts.lastSource())
	}
	for _, stage := range rec.Stages() {
		if stage == notifications.StagePDFExtraction {
			t.Fatal("extraction stage emitted without a document")
		}
	}
	if names := h.store.names(); len(names) != 2 || !strings.HasPrefix(names[0], "audio/"+job.ID+"_") {
		t.Fatalf("uploads = %v", names)
	}
}

func TestEmptyScriptFailsBeforeSpeech(t *testing.T) {
	h := newHarness(t, nil)
	h.scripts.script = "   \n"
	job, rec := h.submit(t, workflow.Submission{Instruction: "anything"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Status != jobs.StatusError || final.Error != workflow.EmptyScriptMessage {
		t.Fatalf("unexpected final job %+v", final)
	}
	if h.speech.wasCalled() {
		t.Fatal("speech synthesis should not run after an empty script")
	}
	events := rec.Events()
	last := events[len(events)-1]
	if last.Stage != notifications.StageError || !strings.Contains(last.Message, workflow.EmptyScriptMessage) {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}

func TestSpeechFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.speech.err = services.Wrap(services.ErrConfiguration, "tts_generation", "synthesize", "speech.resource_key is not set", nil)
	job, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Status != jobs.StatusError || final.ErrorKind != string(services.KindConfiguration) {
		t.Fatalf("unexpected final job %+v", final)
	}
	if !strings.Contains(final.Error, "speech.resource_key") {
		t.Fatalf("error should name the missing setting: %q", final.Error)
	}
}

func TestAudioUploadFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.store.fail = map[string]error{"audio/": services.Wrap(services.ErrExternalTool, "storage", "upload", "denied", nil)}
	job, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)

	if final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second); final.Status != jobs.StatusError {
		t.Fatalf("expected error, got %s", final.Status)
	}
}

func TestComposeFailureDegrades(t *testing.T) {
	h := newHarness(t, func(d *workflow.Dependencies) {
		d.Compositor = fakeComposer{err: services.Wrap(services.ErrValidation, "video_editing", "plan", "base video is shorter than the narration", compositor.ErrVideoTooShort)}
	})
	job, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if !final.Degraded() || final.Error != "" {
		t.Fatalf("expected degraded completion, got %+v", final)
	}
	if !strings.Contains(final.Result.VideoError, "shorter") || final.Result.AudioURL == "" {
		t.Fatalf("unexpected result %+v", final.Result)
	}
	events := rec.Events()
	last := events[len(events)-1]
	if last.Stage != notifications.StageCompleted || last.Fields["video_url"] != (*string)(nil) {
		t.Fatalf("unexpected completed event %+v", last)
	}
}

func TestNarrowBaseVideoDegrades(t *testing.T) {
	h := newHarness(t, func(d *workflow.Dependencies) {
		d.Compositor = compositor.New(compositor.Options{
			FFmpegPath: "ffmpeg",
			Runner: func(context.Context, string, ...string) ([]byte, error) {
				return nil, errors.New("ffmpeg should not run for a narrow base video")
			},
			Probe: func(_ context.Context, path string) (ffprobe.Result, error) {
				if strings.HasSuffix(path, ".mp3") {
					return ffprobe.Result{Format: ffprobe.Format{Duration: "20"}}, nil
				}
				return ffprobe.Result{
					Streams: []ffprobe.Stream{{CodecType: "video", Width: 600, Height: 1080}},
					Format:  ffprobe.Format{Duration: "120"},
				}, nil
			},
		})
	})
	job, rec := h.submit(t, workflow.Submission{Instruction: "black holes"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Status != jobs.StatusCompleted || final.Result == nil || final.Result.VideoURL != nil {
		t.Fatalf("expected completion without video, got %+v", final)
	}
	if final.Result.Script == "" || final.Result.AudioURL == "" {
		t.Fatalf("script and audio should survive a crop rejection: %+v", final.Result)
	}
	if !strings.Contains(final.Result.VideoError, "below target 607") {
		t.Fatalf("expected crop rejection reason, got %q", final.Result.VideoError)
	}
}

func TestVideoUploadFailureDegrades(t *testing.T) {
	h := newHarness(t, nil)
	h.store.fail = map[string]error{"videos/": errors.New("network down")}
	job, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if !final.Degraded() || !strings.Contains(final.Result.VideoError, "network down") {
		t.Fatalf("expected degraded completion, got %+v", final.Result)
	}
}

func TestDocumentUploadFailureContinuesWithoutText(t *testing.T) {
	h := newHarness(t, nil)
	h.store.fail = map[string]error{"files/": errors.New("denied")}
	doc := testsupport.WriteText(t, filepath.Join(t.TempDir(), "notes.pdf"), "%PDF")
	job, rec := h.submit(t, workflow.Submission{DocumentPath: doc, Instruction: "x"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion, got %+v", final)
	}
	if h.scripts.lastSource() != "" || final.Result.PDFBlobURL != "" {
		t.Fatalf("expected no source text, got %q / %q", h.scripts.lastSource(), final.Result.PDFBlobURL)
	}
}

func TestExtractionFailureContinuesWithoutText(t *testing.T) {
	h := newHarness(t, func(d *workflow.Dependencies) {
		d.Extractor = fakeExtractor{err: errors.New("pdftotext crashed")}
	})
	doc := testsupport.WriteText(t, filepath.Join(t.TempDir(), "notes.pdf"), "%PDF")
	job, rec := h.submit(t, workflow.Submission{DocumentPath: doc})
	waitDone(t, rec)

	if final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second); final.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion, got %s", final.Status)
	}
	if h.scripts.lastSource() != "" {
		t.Fatalf("expected empty source, got %q", h.scripts.lastSource())
	}
}

func TestDocumentURLIsDownloaded(t *testing.T) {
	h := newHarness(t, nil)
	job, rec := h.submit(t, workflow.Submission{DocumentURL: "https://blob.test/files/abc", DocumentName: "abc.pdf"})
	waitDone(t, rec)

	final := testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)
	if final.Result.PDFName != job.ID+"_abc.pdf" || h.scripts.lastSource() != "source text" {
		t.Fatalf("unexpected result %+v source %q", final.Result, h.scripts.lastSource())
	}
}

func TestHeartbeatDuringRender(t *testing.T) {
	h := newHarness(t, func(d *workflow.Dependencies) {
		d.Compositor = fakeComposer{delay: 2500 * time.Millisecond}
	})
	_, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)

	beats := 0
	for _, event := range rec.Events() {
		if event.Stage == notifications.StageVideoRendering {
			beats++
		}
	}
	if beats < 1 {
		t.Fatalf("expected heartbeat events during render, got %v", rec.Events())
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.manager.Submit(context.Background(), workflow.Submission{Instruction: "  "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRequiresRunningManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	manager := workflow.NewManager(cfg, jobs.NewMemoryRegistry(), workflow.Dependencies{}, nil)
	_, err := manager.Submit(context.Background(), workflow.Submission{Instruction: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestJobsAreIndependent(t *testing.T) {
	h := newHarness(t, nil)
	ok, okRec := h.submit(t, workflow.Submission{Instruction: "first"})
	waitDone(t, okRec)

	h.scripts.script = ""
	bad, badRec := h.submit(t, workflow.Submission{Instruction: "second"})
	waitDone(t, badRec)

	if final := testsupport.WaitForTerminal(t, h.registry, ok.ID, time.Second); final.Status != jobs.StatusCompleted {
		t.Fatalf("first job status = %s", final.Status)
	}
	if final := testsupport.WaitForTerminal(t, h.registry, bad.ID, time.Second); final.Status != jobs.StatusError {
		t.Fatalf("second job status = %s", final.Status)
	}
}

func TestStopMarksInFlightJobsShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBaseVideo())
	registry := jobs.NewMemoryRegistry()
	speech := &fakeSpeech{block: make(chan struct{})}
	manager := workflow.NewManager(cfg, registry, workflow.Dependencies{
		Scripts:    &fakeScripts{script: "hello"},
		Speech:     speech,
		Compositor: fakeComposer{},
		Store:      &fakeStore{},
	}, nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec := testsupport.NewRecorder()
	job, err := manager.Submit(context.Background(), workflow.Submission{Instruction: "x", Destination: rec})
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !speech.wasCalled() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	manager.Stop(time.Second)
	final, err := registry.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != jobs.StatusError || final.Error != workflow.ShutdownMessage {
		t.Fatalf("expected shutdown error, got %+v", final)
	}
	if manager.Running() {
		t.Fatal("manager still running after Stop")
	}
}

func TestStatusSummary(t *testing.T) {
	h := newHarness(t, nil)
	job, rec := h.submit(t, workflow.Submission{Instruction: "x"})
	waitDone(t, rec)
	testsupport.WaitForTerminal(t, h.registry, job.ID, time.Second)

	summary := h.manager.Status(context.Background())
	if !summary.Running || summary.JobStats[jobs.StatusCompleted] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.RenderWorkers <= 0 || len(summary.StageHealth) == 0 {
		t.Fatalf("summary missing pool or health: %+v", summary)
	}
}

var _ storage.Store = (*fakeStore)(nil)
