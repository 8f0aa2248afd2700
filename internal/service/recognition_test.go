package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/extractor"
	"github.com/RudraShekhare/face-attendance-system/internal/matcher"
)

func testGallery(t *testing.T) *domain.Gallery {
	t.Helper()
	g := domain.NewGallery()
	if err := g.Add("alice", domain.Embedding{10, 0}, domain.Embedding{10.1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("bob", domain.Embedding{20, 0}); err != nil {
		t.Fatal(err)
	}
	return g
}

type recognitionFixture struct {
	fast, accurate *fakeExtractor
	index          *fakeIndex
	attendance     *AttendanceService
	svc            *RecognitionService
}

func newRecognitionFixture(t *testing.T) *recognitionFixture {
	t.Helper()
	fast := newFakeExtractor(extractor.Fast)
	accurate := newFakeExtractor(extractor.Accurate)
	for _, ext := range []*fakeExtractor{fast, accurate} {
		ext.face(50, 10.25, 0)              // alice
		ext.face(60, 10, 0).face(60, 20, 0) // alice and bob
		ext.face(70, 15, 0)                 // nobody within tolerance
	}
	index := &fakeIndex{}
	attendance := newTestAttendanceService(t)
	svc := NewRecognitionService([]extractor.FeatureExtractor{fast, accurate}, attendance, index, nil, RecognitionConfig{
		LiveTolerance:    0.5,
		CheckinTolerance: 0.65,
		CheckinMode:      extractor.Accurate,
		LiveMode:         extractor.Fast,
	})
	svc.UseGallery(testGallery(t), false)
	return &recognitionFixture{fast: fast, accurate: accurate, index: index, attendance: attendance, svc: svc}
}

func TestRecognize(t *testing.T) {
	f := newRecognitionFixture(t)

	tests := []struct {
		name  string
		width int
		want  []string
	}{
		{name: "single known", width: 50, want: []string{"alice"}},
		{name: "two faces", width: 60, want: []string{"alice", "bob"}},
		{name: "unknown", width: 70, want: []string{matcher.Unknown}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.Recognize(context.Background(), testJPEG(t, tc.width), extractor.Fast, 0.5)
			if err != nil {
				t.Fatalf("Recognize() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("Recognize() = %d faces, want %d", len(got), len(tc.want))
			}
			for i, r := range got {
				if r.Identity != tc.want[i] {
					t.Errorf("face %d = %q, want %q", i, r.Identity, tc.want[i])
				}
				if r.Known != (tc.want[i] != matcher.Unknown) {
					t.Errorf("face %d Known = %v", i, r.Known)
				}
			}
		})
	}
}

func TestRecognizeNoFaceIsDistinctFromUnknown(t *testing.T) {
	f := newRecognitionFixture(t)

	_, err := f.svc.Recognize(context.Background(), testJPEG(t, 80), extractor.Fast, 0.5)
	if !errors.Is(err, domain.ErrNoFaceDetected) {
		t.Errorf("Recognize() error = %v, want ErrNoFaceDetected", err)
	}

	_, err = f.svc.Recognize(context.Background(), []byte("junk"), extractor.Fast, 0.5)
	if !errors.Is(err, domain.ErrUnreadableImage) {
		t.Errorf("Recognize(junk) error = %v, want ErrUnreadableImage", err)
	}
}

func TestRecognizeUsesIndexAndFallsBack(t *testing.T) {
	f := newRecognitionFixture(t)
	f.svc.UseGallery(testGallery(t), true)

	f.index.candidates = []matcher.Candidate{{Position: 2, Identity: "bob", Distance: 0.1}}
	got, err := f.svc.Recognize(context.Background(), testJPEG(t, 50), extractor.Fast, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Identity != "bob" {
		t.Errorf("indexed Recognize() = %q, want the index's answer", got[0].Identity)
	}

	f.index.searchErr = errors.New("qdrant down")
	got, err = f.svc.Recognize(context.Background(), testJPEG(t, 50), extractor.Fast, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Identity != "alice" {
		t.Errorf("fallback Recognize() = %q, want alice from linear scan", got[0].Identity)
	}
}

func TestCheckInMarksOncePerDay(t *testing.T) {
	f := newRecognitionFixture(t)
	ctx := context.Background()
	morning := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)

	outcomes, err := f.svc.CheckIn(ctx, testJPEG(t, 60), morning)
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if len(outcomes) != 2 || outcomes[0].Mark != domain.Marked || outcomes[1].Mark != domain.Marked {
		t.Fatalf("CheckIn() = %+v", outcomes)
	}
	if f.accurate.calls != 1 || f.fast.calls != 0 {
		t.Errorf("CheckIn used fast=%d accurate=%d, want accurate only", f.fast.calls, f.accurate.calls)
	}

	outcomes, err = f.svc.CheckIn(ctx, testJPEG(t, 50), morning.Add(8*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Mark != domain.AlreadyMarked || outcomes[0].Record.Time != "09:00:00" {
		t.Errorf("second CheckIn() = %+v, want AlreadyMarked at 09:00:00", outcomes[0])
	}

	outcomes, err = f.svc.CheckIn(ctx, testJPEG(t, 70), morning)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Known || outcomes[0].Mark != "" {
		t.Errorf("unknown face outcome = %+v", outcomes[0])
	}

	records, _ := f.attendance.List(ctx, domain.AttendanceFilter{})
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

type sliceFrames struct {
	frames [][]byte
}

func (s *sliceFrames) NextFrame(context.Context) ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

func TestWatch(t *testing.T) {
	f := newRecognitionFixture(t)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local) }

	frames := &sliceFrames{frames: [][]byte{
		testJPEG(t, 50),
		testJPEG(t, 80), // no face
		testJPEG(t, 50),
		[]byte("corrupt frame"),
	}}

	var marks []domain.MarkResult
	var frameCount int
	err := f.svc.Watch(context.Background(), frames, func(_ context.Context, outcomes []CheckInOutcome) error {
		frameCount++
		for _, o := range outcomes {
			marks = append(marks, o.Mark)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if frameCount != 4 {
		t.Errorf("handler called %d times, want 4", frameCount)
	}
	want := []domain.MarkResult{domain.Marked, domain.AlreadyMarked}
	if len(marks) != 2 || marks[0] != want[0] || marks[1] != want[1] {
		t.Errorf("marks = %v, want %v", marks, want)
	}
	if f.fast.calls != 4 || f.accurate.calls != 0 {
		t.Errorf("Watch used fast=%d accurate=%d", f.fast.calls, f.accurate.calls)
	}
}

func TestWatchStopsOnHandlerRequest(t *testing.T) {
	f := newRecognitionFixture(t)
	frames := &sliceFrames{frames: [][]byte{testJPEG(t, 50), testJPEG(t, 50), testJPEG(t, 50)}}

	calls := 0
	err := f.svc.Watch(context.Background(), frames, func(context.Context, []CheckInOutcome) error {
		calls++
		return ErrStopWatch
	})
	if err != nil || calls != 1 {
		t.Errorf("Watch() = %v after %d frames, want nil after 1", err, calls)
	}
}
