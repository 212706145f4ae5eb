package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fbzone/internal/convert"
	"fbzone/internal/history"
	"fbzone/internal/media"
	"fbzone/internal/strategy"
)

const videoURL = "https://www.facebook.com/watch/?v=1234567890"

// stub is a strategy whose attempt is a closure.
type stub struct {
	strategy.Tier
	calls atomic.Int32
	fn    func(ctx context.Context, req strategy.Request) strategy.Result
}

func newStub(id string, budget time.Duration, fn func(context.Context, strategy.Request) strategy.Result) *stub {
	return &stub{Tier: strategy.Tier{Name: id, Timeout: budget}, fn: fn}
}

func (s *stub) Attempt(ctx context.Context, req strategy.Request) strategy.Result {
	s.calls.Add(1)
	return s.fn(ctx, req)
}

func soft(err error) func(context.Context, strategy.Request) strategy.Result {
	return func(context.Context, strategy.Request) strategy.Result { return strategy.Soft(err) }
}

func blockUntilDone(ctx context.Context, _ strategy.Request) strategy.Result {
	<-ctx.Done()
	return strategy.Soft(ctx.Err())
}

func writeAsset(t *testing.T, req strategy.Request, name, ct string) *media.Asset {
	t.Helper()
	path, err := req.Workspace.Path(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data:"+name), 0600); err != nil {
		t.Fatal(err)
	}
	a, err := media.NewAsset(path, ct, name, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func chain(ss ...*stub) []strategy.Strategy {
	out := make([]strategy.Strategy, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func identityReq() strategy.Request {
	return strategy.Request{Goal: media.Identity, Source: media.Source{URL: videoURL, ContentID: "1234567890"}}
}

func TestIdentityExhausted(t *testing.T) {
	stubs := []*stub{
		newStub("direct-fetch", 0, func(context.Context, strategy.Request) strategy.Result {
			return strategy.Succeed(strategy.Payload{Markup: "<html>no profiles</html>"})
		}),
		newStub("header-variant-fetch", 0, soft(media.ErrNoMatch)),
		newStub("id-heuristic", 0, soft(media.ErrNoMatch)),
		newStub("browser-render", 0, soft(media.Network(errors.New("chrome crashed")))),
	}

	o := NewOrchestrator(nil, nil)
	run, err := o.Resolve(context.Background(), identityReq(), chain(stubs...), 0)

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	want := []string{"direct-fetch", "header-variant-fetch", "id-heuristic", "browser-render"}
	if diff := cmp.Diff(want, ex.IDs()); diff != "" {
		t.Errorf("attempted ids (-want +got):\n%s", diff)
	}
	if run.State != Exhausted {
		t.Errorf("state = %s, want exhausted", run.State)
	}
	if !errors.Is(err, media.ErrNoMatch) || !errors.Is(err, media.ErrNetwork) {
		t.Errorf("err does not expose attempt reasons: %v", err)
	}
	if ex.Reason() != ReasonNothingFound {
		t.Errorf("Reason() = %q, want %q", ex.Reason(), ReasonNothingFound)
	}
}

func TestIdentityExtractsMarkup(t *testing.T) {
	markup := `{"name":"Jane Doe","url":"https://www.facebook.com/profile.php?id=100000000000001"}`
	direct := newStub("direct-fetch", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{Markup: markup})
	})
	render := newStub("browser-render", 0, soft(media.ErrNoMatch))

	o := NewOrchestrator(nil, nil)
	o.Extractor = extractorFunc(func(string) media.CandidateSet {
		return media.CandidateSet{{DisplayName: "Jane Doe", URL: "https://www.facebook.com/profile.php?id=100000000000001"}}
	})
	run, err := o.Resolve(context.Background(), identityReq(), chain(direct, render), 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if run.State != Succeeded || run.Winner != "direct-fetch" || run.Index != 0 {
		t.Errorf("run = %+v", run)
	}
	if len(run.Payload.Candidates) != 1 {
		t.Errorf("candidates = %+v", run.Payload.Candidates)
	}
	if render.calls.Load() != 0 {
		t.Error("later strategy ran after a success")
	}
}

type extractorFunc func(string) media.CandidateSet

func (f extractorFunc) Extract(m string) media.CandidateSet { return f(m) }

func TestHardFailureAborts(t *testing.T) {
	first := newStub("first", 0, soft(media.ErrNoMatch))
	second := newStub("second", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Hard(&media.InvalidSourceError{URL: videoURL, Reason: "rejected"})
	})
	third := newStub("third", 0, soft(media.ErrNoMatch))

	_, err := NewOrchestrator(nil, nil).Resolve(context.Background(), identityReq(), chain(first, second, third), 0)
	var ex *ExhaustedError
	if !errors.As(err, &ex) || !ex.Aborted {
		t.Fatalf("err = %v, want aborted *ExhaustedError", err)
	}
	if third.calls.Load() != 0 {
		t.Error("strategy after a hard failure ran")
	}
	if !errors.Is(err, media.ErrInvalidSource) {
		t.Errorf("err = %v, want invalid source", err)
	}
}

func TestPanicIsSoft(t *testing.T) {
	boom := newStub("boom", 0, func(context.Context, strategy.Request) strategy.Result { panic("nil map") })
	ok := newStub("ok", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{URL: "https://example.com/x.jpg"})
	})
	run, err := NewOrchestrator(nil, nil).Resolve(context.Background(), strategy.Request{Goal: media.Photo}, chain(boom, ok), 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if run.Winner != "ok" {
		t.Errorf("winner = %q, want ok", run.Winner)
	}
}

func TestStrategyBudget(t *testing.T) {
	slow := newStub("slow", 20*time.Millisecond, blockUntilDone)
	fast := newStub("fast", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{URL: "https://example.com/v.mp4"})
	})

	run, err := NewOrchestrator(nil, nil).Resolve(context.Background(), strategy.Request{Goal: media.Video}, chain(slow, fast), 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if run.Winner != "fast" {
		t.Errorf("winner = %q, want fast", run.Winner)
	}
	first := run.Attempts[0]
	if first.Outcome != strategy.SoftFailure || !errors.Is(first.Err, media.ErrNetwork) || !errors.Is(first.Err, errStrategyBudget) {
		t.Errorf("slow attempt = %+v, want soft budget failure", first)
	}
}

func TestOverallCeiling(t *testing.T) {
	first := newStub("first", 0, blockUntilDone)
	second := newStub("second", 0, soft(media.ErrNoMatch))

	start := time.Now()
	_, err := NewOrchestrator(nil, nil).Resolve(context.Background(), identityReq(), chain(first, second), 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Resolve took %v past a 50ms ceiling", elapsed)
	}

	var ex *ExhaustedError
	if !errors.As(err, &ex) || !ex.TimedOut {
		t.Fatalf("err = %v, want timed out *ExhaustedError", err)
	}
	if second.calls.Load() != 0 {
		t.Error("strategy ran after the ceiling expired")
	}
	if !errors.Is(err, errCeiling) {
		t.Errorf("err = %v, want overall budget reason", err)
	}
}

func TestResourcesReleasedBeforeNextStrategy(t *testing.T) {
	var released atomic.Bool
	holder := newStub("holder", 10*time.Millisecond, func(ctx context.Context, _ strategy.Request) strategy.Result {
		defer func() {
			time.Sleep(30 * time.Millisecond)
			released.Store(true)
		}()
		<-ctx.Done()
		return strategy.Soft(ctx.Err())
	})

	var sawReleased bool
	next := newStub("next", 0, func(context.Context, strategy.Request) strategy.Result {
		sawReleased = released.Load()
		return strategy.Soft(media.ErrNoMatch)
	})

	o := NewOrchestrator(nil, nil)
	o.ReleaseGrace = time.Second
	_, _ = o.Resolve(context.Background(), identityReq(), chain(holder, next), 0)
	if !sawReleased {
		t.Error("next strategy started before the previous one released its resources")
	}
}

func TestReleaseGraceIsBounded(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	ignorer := newStub("ignorer", 10*time.Millisecond, func(context.Context, strategy.Request) strategy.Result {
		<-stuck
		return strategy.Soft(media.ErrNoMatch)
	})

	o := NewOrchestrator(nil, nil)
	o.ReleaseGrace = 20 * time.Millisecond
	start := time.Now()
	_, err := o.Resolve(context.Background(), identityReq(), chain(ignorer), 0)
	if time.Since(start) > 2*time.Second {
		t.Error("orchestrator blocked on a strategy that ignores cancellation")
	}
	if !errors.Is(err, errStrategyBudget) {
		t.Errorf("err = %v, want strategy budget reason", err)
	}
}

func TestExhaustedReason(t *testing.T) {
	tests := []struct {
		name string
		errs []error
		want string
	}{
		{"all network", []error{media.Network(errors.New("a")), media.Network(errors.New("b"))}, ReasonUnreachable},
		{"mixed", []error{media.Network(errors.New("a")), media.ErrNoMatch}, ReasonNothingFound},
		{"remote job", []error{media.ErrCodecUnavailable, media.ErrRemoteJob}, ReasonConversionFailed},
		{"invalid source", []error{&media.InvalidSourceError{URL: "x", Reason: "y"}}, ReasonInvalidSource},
		{"nothing tried", nil, ReasonNothingFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &ExhaustedError{Goal: media.Audio}
			for i, err := range tt.errs {
				ex.Attempts = append(ex.Attempts, Attempt{ID: string(rune('a' + i)), Err: err})
			}
			if got := ex.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInvalidSourceRunsNothing(t *testing.T) {
	s := newStub("direct-fetch", 0, soft(media.ErrNoMatch))
	r := New(Options{
		Chains:  Chains{Identity: chain(s), Video: chain(s), Locate: chain(s), Image: chain(s)},
		WorkDir: t.TempDir(),
	})

	ctx := context.Background()
	calls := []struct {
		name string
		fn   func() error
	}{
		{"identify", func() error { _, err := r.Identify(ctx, "https://example.com/some/page"); return err }},
		{"video", func() error { _, err := r.Video(ctx, "https://www.facebook.com/jane.doe"); return err }},
		{"audio", func() error { _, err := r.Audio(ctx, "ftp://www.facebook.com/watch/?v=1"); return err }},
		{"photo", func() error { _, err := r.Photo(ctx, "not a url"); return err }},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			var inv *media.InvalidSourceError
			if err := c.fn(); !errors.As(err, &inv) {
				t.Errorf("err = %v, want *media.InvalidSourceError", err)
			}
		})
	}
	if n := s.calls.Load(); n != 0 {
		t.Errorf("%d strategies attempted for invalid sources", n)
	}
}

type recorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recorder) Record(_ context.Context, e history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func TestIdentifyRecordsHistory(t *testing.T) {
	set := media.CandidateSet{
		{DisplayName: "Pages", URL: "https://www.facebook.com/profile.php?id=100000000000009"},
		{DisplayName: "Jane Doe", URL: "https://www.facebook.com/profile.php?id=100000000000001"},
	}
	s := newStub("id-heuristic", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{Candidates: set})
	})
	rec := &recorder{}
	r := New(Options{Chains: Chains{Identity: chain(s)}, WorkDir: t.TempDir(), Recorder: rec})

	id, err := r.Identify(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("Identify() error: %v", err)
	}
	if id.Selected != set[1] {
		t.Errorf("selected = %+v, want the second-ranked candidate", id.Selected)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Goal != "identity" || e.Strategy != "id-heuristic" || e.Outcome != history.Succeeded || e.Result != set[1].URL {
		t.Errorf("entry = %+v", e)
	}
}

func TestPhotoFollowsSelectedProfile(t *testing.T) {
	set := media.CandidateSet{
		{DisplayName: "Watch", URL: "https://www.facebook.com/profile.php?id=100000000000009"},
		{DisplayName: "Jane Doe", URL: "https://www.facebook.com/profile.php?id=100000000000001"},
	}
	identity := newStub("direct-fetch", 0, func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{Candidates: set})
	})

	const photoPage = "https://www.facebook.com/photo/?fbid=42"
	var locateTarget, imageTarget string
	locate := newStub("key-navigation", 0, func(_ context.Context, req strategy.Request) strategy.Result {
		locateTarget = req.Target
		return strategy.Succeed(strategy.Payload{URL: photoPage})
	})
	image := newStub("page-image-scan", 0, func(_ context.Context, req strategy.Request) strategy.Result {
		imageTarget = req.Target
		return strategy.Succeed(strategy.Payload{Asset: writeAsset(t, req, "photo.jpg", "image/jpeg")})
	})

	r := New(Options{Chains: Chains{Identity: chain(identity), Locate: chain(locate), Image: chain(image)}, WorkDir: t.TempDir()})
	res, err := r.Photo(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("Photo() error: %v", err)
	}
	defer res.Asset.Close()

	if locateTarget != set[1].URL {
		t.Errorf("navigation target = %q, want %q", locateTarget, set[1].URL)
	}
	if imageTarget != photoPage {
		t.Errorf("image target = %q, want %q", imageTarget, photoPage)
	}
	if res.Profile != set[1] || res.Asset.ContentType != "image/jpeg" {
		t.Errorf("result = %+v", res)
	}
}

// conversionService answers processing a fixed number of times, then completed.
type conversionService struct {
	mu         sync.Mutex
	processing int
	polls      int
}

func (c *conversionService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		io.Copy(io.Discard, f)
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.polls++
		status := "processing"
		if c.polls > c.processing {
			status = "completed"
		}
		c.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("GET /download/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ID3-remote-audio"))
	})
	return mux
}

type missingCodec struct{}

func (missingCodec) ExtractAudio(context.Context, string, string) error {
	return media.ErrCodecUnavailable
}

func TestAudioFallsBackToRemoteConversion(t *testing.T) {
	svc := &conversionService{processing: 5}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	var mu sync.Mutex
	var waited time.Duration
	client := convert.New(convert.Options{
		BaseURL: srv.URL,
		Wait: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			waited += d
			mu.Unlock()
			return nil
		},
	}, nil)

	video := newStub("page-video-scan", 0, func(_ context.Context, req strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{Asset: writeAsset(t, req, "video.mp4", "video/mp4")})
	})
	r := New(Options{
		Chains: Chains{
			Video: chain(video),
			Audio: []strategy.Strategy{
				&strategy.Transcode{Tier: strategy.Tier{Name: "local-transcode", Type: strategy.LocalTranscode}, Codec: missingCodec{}},
				&strategy.Remote{Tier: strategy.Tier{Name: "remote-conversion", Type: strategy.RemoteConversion, Timeout: time.Minute}, Converter: client},
			},
		},
		WorkDir: t.TempDir(),
	})

	asset, err := r.Audio(context.Background(), videoURL)
	if err != nil {
		t.Fatalf("Audio() error: %v", err)
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ID3-remote-audio" || asset.ContentType != "audio/mpeg" {
		t.Errorf("asset = %+v (%q)", asset, data)
	}
	if waited < 25*time.Second {
		t.Errorf("polling waited %v, want at least 25s", waited)
	}
	svc.mu.Lock()
	polls := svc.polls
	svc.mu.Unlock()
	if polls != 6 {
		t.Errorf("polls = %d, want 6", polls)
	}

	if err := asset.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := os.Stat(asset.Path); !os.IsNotExist(err) {
		t.Errorf("asset file still present after Close: %v", err)
	}
}

func TestAudioExhaustedListsBothStages(t *testing.T) {
	video := newStub("page-video-scan", 0, func(_ context.Context, req strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{Asset: writeAsset(t, req, "video.mp4", "video/mp4")})
	})
	local := newStub("local-transcode", 0, soft(media.ErrCodecUnavailable))
	remote := newStub("remote-conversion", 0, soft(media.ErrRemoteJob))

	dir := t.TempDir()
	r := New(Options{Chains: Chains{Video: chain(video), Audio: chain(local, remote)}, WorkDir: dir})
	_, err := r.Audio(context.Background(), videoURL)

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if diff := cmp.Diff([]string{"page-video-scan", "local-transcode", "remote-conversion"}, ex.IDs()); diff != "" {
		t.Errorf("attempts (-want +got):\n%s", diff)
	}
	if ex.Reason() != ReasonConversionFailed {
		t.Errorf("Reason() = %q, want %q", ex.Reason(), ReasonConversionFailed)
	}

	left, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("workspace not removed after failure: %d entries left", len(left))
	}
}

func TestWinnerWithoutAssetIsExhausted(t *testing.T) {
	urlOnly := func(context.Context, strategy.Request) strategy.Result {
		return strategy.Succeed(strategy.Payload{URL: "https://video.xx.fbcdn.net/v/clip.mp4"})
	}

	tests := []struct {
		name    string
		goal    media.Goal
		chains  func() Chains
		wantIDs []string
	}{
		{
			name: "video",
			goal: media.Video,
			chains: func() Chains {
				return Chains{Video: chain(newStub("page-video-scan", 0, urlOnly))}
			},
			wantIDs: []string{"page-video-scan"},
		},
		{
			name: "audio",
			goal: media.Audio,
			chains: func() Chains {
				video := newStub("page-video-scan", 0, func(_ context.Context, req strategy.Request) strategy.Result {
					return strategy.Succeed(strategy.Payload{Asset: writeAsset(t, req, "video.mp4", "video/mp4")})
				})
				return Chains{Video: chain(video), Audio: chain(newStub("local-transcode", 0, urlOnly))}
			},
			wantIDs: []string{"page-video-scan", "local-transcode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			r := New(Options{Chains: tt.chains(), WorkDir: dir})

			var err error
			if tt.goal == media.Video {
				_, err = r.Video(context.Background(), videoURL)
			} else {
				_, err = r.Audio(context.Background(), videoURL)
			}

			var ex *ExhaustedError
			if !errors.As(err, &ex) {
				t.Fatalf("err = %v, want *ExhaustedError", err)
			}
			if ex.Goal != tt.goal {
				t.Errorf("Goal = %v, want %v", ex.Goal, tt.goal)
			}
			if diff := cmp.Diff(tt.wantIDs, ex.IDs()); diff != "" {
				t.Errorf("attempts (-want +got):\n%s", diff)
			}
			last := ex.Attempts[len(ex.Attempts)-1]
			if last.Outcome != strategy.SoftFailure || !errors.Is(err, media.ErrNoMatch) {
				t.Errorf("last attempt = %v %v, want a soft no-match", last.Outcome, last.Err)
			}
			if ex.Reason() != ReasonNothingFound {
				t.Errorf("Reason() = %q, want %q", ex.Reason(), ReasonNothingFound)
			}

			left, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(left) != 0 {
				t.Errorf("workspace not removed: %d entries left", len(left))
			}
		})
	}
}
