package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/storage"
	"github.com/xuri/excelize/v2"
)

func TestAttendanceMarkNormalizesIdentity(t *testing.T) {
	svc := newTestAttendanceService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)

	if result, _, err := svc.Mark(ctx, "  alice ", at); err != nil || result != domain.Marked {
		t.Fatalf("Mark() = %v, %v", result, err)
	}
	if result, _, err := svc.Mark(ctx, "alice", at.Add(time.Hour)); err != nil || result != domain.AlreadyMarked {
		t.Errorf("Mark() = %v, %v; want AlreadyMarked", result, err)
	}
	if _, _, err := svc.Mark(ctx, "", at); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Errorf("Mark(\"\") error = %v, want ErrInvalidIdentity", err)
	}
}

func TestListNormalizesNameFilter(t *testing.T) {
	svc := newTestAttendanceService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	for _, name := range []string{"alice smith", "bob"} {
		if _, _, err := svc.Mark(ctx, name, at); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		filter  string
		want    int
		wantErr error
	}{
		{name: "exact", filter: "alice smith", want: 1},
		{name: "extra whitespace", filter: "  alice   smith ", want: 1},
		{name: "blank means all", filter: "   ", want: 2},
		{name: "path-like", filter: "../bob", wantErr: domain.ErrInvalidIdentity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.List(ctx, domain.AttendanceFilter{Name: tc.filter})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("List() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("List() returned %d records, want %d", len(got), tc.want)
			}
		})
	}
}

func TestExportFiles(t *testing.T) {
	svc := newTestAttendanceService(t)
	archive, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc.storage = archive

	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		if _, _, err := svc.Mark(ctx, name, time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)); err != nil {
			t.Fatal(err)
		}
	}

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "attendance.csv")
	xlsxPath := filepath.Join(dir, "attendance.xlsx")
	res, err := svc.ExportFiles(ctx, csvPath, xlsxPath)
	if err != nil {
		t.Fatalf("ExportFiles() error = %v", err)
	}
	if res.Records != 2 || len(res.Files) != 2 || len(res.Archived) != 2 {
		t.Errorf("ExportFiles() = %+v", res)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "id,name,date,time\n1,alice,2024-03-01,09:00:00\n") {
		t.Errorf("csv = %q", data)
	}

	book, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer book.Close()
	rows, _ := book.GetRows("Attendance")
	if len(rows) != 3 {
		t.Errorf("spreadsheet rows = %d, want 3", len(rows))
	}

	for _, key := range res.Archived {
		if ok, _ := archive.Exists(ctx, key); !ok {
			t.Errorf("archive %s missing", key)
		}
	}
}

func TestExportCSVIncludesEverything(t *testing.T) {
	svc := newTestAttendanceService(t)
	ctx := context.Background()
	_, _, _ = svc.Mark(ctx, "alice", time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local))
	_, _, _ = svc.Mark(ctx, "alice", time.Date(2024, 3, 2, 9, 0, 0, 0, time.Local))

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("csv lines = %d, want header plus 2", lines)
	}

	removed, err := svc.Clear(ctx)
	if err != nil || removed != 2 {
		t.Errorf("Clear() = %d, %v", removed, err)
	}
}

func TestStartScheduler(t *testing.T) {
	svc := newTestAttendanceService(t)

	sched, err := svc.StartScheduler(context.Background(), "23:55", "", "")
	if err != nil {
		t.Fatalf("StartScheduler() error = %v", err)
	}
	if !sched.IsRunning() {
		t.Errorf("scheduler not running")
	}
	sched.Stop()

	if _, err := svc.StartScheduler(context.Background(), "noon", "", ""); err == nil {
		t.Errorf("StartScheduler(noon) error = nil")
	}
}
