package export

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/xuri/excelize/v2"
)

var sample = []domain.AttendanceRecord{
	{ID: 1, Name: "alice", Date: "2024-03-01", Time: "09:00:00"},
	{ID: 2, Name: "bob, jr", Date: "2024-03-01", Time: "09:05:10"},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "id,name,date,time\n" +
		"1,alice,2024-03-01,09:00:00\n" +
		"2,\"bob, jr\",2024-03-01,09:05:10\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "id,name,date,time\n" {
		t.Errorf("WriteCSV(nil) = %q", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{
		{"id", "name", "date", "time"},
		{"1", "alice", "2024-03-01", "09:00:00"},
		{"2", "bob, jr", "2024-03-01", "09:05:10"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}
