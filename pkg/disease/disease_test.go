package disease_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cropwise/cropwise/pkg/disease"
)

func first(int) int { return 0 }
func last(n int) int { return n - 1 }

func TestDefaultTable(t *testing.T) {
	tbl := disease.DefaultTable()
	if tbl.Len() != 16 {
		t.Fatalf("expected 16 diseases, got %d", tbl.Len())
	}
	for _, e := range tbl.Entries() {
		if e.Name == "" || e.Description == "" || len(e.Remedies) == 0 || len(e.PreventiveMeasures) == 0 {
			t.Errorf("%s: incomplete entry", e.ID)
		}
		if e.Confidence <= 0 || e.Confidence > 100 {
			t.Errorf("%s: confidence %v out of range", e.ID, e.Confidence)
		}
	}
	healthy, ok := tbl.Lookup("healthy")
	if !ok || !healthy.Healthy() {
		t.Error("expected a healthy entry")
	}
}

func TestCandidates(t *testing.T) {
	tbl := disease.DefaultTable()
	tests := []struct {
		filename string
		want     []string
	}{
		{"IMG_0001.jpg", nil},
		{"my_tomato_leaf.png", []string{"tomato_late_blight", "tomato_early_blight", "tomato_septoria_leaf_spot"}},
		{"Wheat-Rust.JPG", []string{"wheat_leaf_rust", "wheat_leaf_rust", "rust"}},
		{"potato_blight.jpeg", []string{"potato_late_blight", "tomato_late_blight", "tomato_early_blight", "potato_late_blight"}},
		{"grapevine.png", []string{"grape_downy_mildew"}},
		{"mosaic-virus.webp", []string{"mosaic_virus"}},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tbl.Candidates(tt.filename)); diff != "" {
				t.Errorf("candidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectKeywordMatch(t *testing.T) {
	d := disease.NewDetector(nil, disease.WithPicker(last))
	got, err := d.Detect(context.Background(), disease.Image{Filename: "tomato_photo.jpg", ContentType: "image/jpeg", Size: 1024})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "tomato_septoria_leaf_spot" {
		t.Errorf("expected tomato_septoria_leaf_spot, got %s", got.ID)
	}
	if got.PlantType != "Tomato" {
		t.Errorf("expected plant type Tomato, got %q", got.PlantType)
	}
}

func TestDetectWeightedFallback(t *testing.T) {
	tbl := disease.DefaultTable()

	d := disease.NewDetector(tbl, disease.WithPicker(first))
	got, err := d.Detect(context.Background(), disease.Image{Filename: "IMG_0001.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != tbl.Entries()[0].ID {
		t.Errorf("index 0 should be the first table entry, got %s", got.ID)
	}

	var sizes []int
	d = disease.NewDetector(tbl, disease.WithPicker(func(n int) int {
		sizes = append(sizes, n)
		return n - 1
	}))
	got, err = d.Detect(context.Background(), disease.Image{Filename: "IMG_0001.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	// 16 entries plus 2+2+2+1+3 extra copies.
	if diff := cmp.Diff([]int{26}, sizes); diff != "" {
		t.Errorf("weighted pool size mismatch (-want +got):\n%s", diff)
	}
	if got.ID != "healthy" {
		t.Errorf("last weighted slot should be healthy, got %s", got.ID)
	}
}

func TestDetectDistribution(t *testing.T) {
	d := disease.NewDetector(nil)
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		got, err := d.Detect(context.Background(), disease.Image{Filename: "cotton.jpg"})
		if err != nil {
			t.Fatal(err)
		}
		counts[got.ID]++
	}
	if len(counts) != 1 || counts["cotton_boll_rot"] != 2000 {
		t.Errorf("cotton should always map to boll rot, got %v", counts)
	}
}

func TestDetectDelayHonoursContext(t *testing.T) {
	d := disease.NewDetector(nil, disease.WithDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Detect(ctx, disease.Image{Filename: "rice.jpg"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDetectResultIsIndependent(t *testing.T) {
	d := disease.NewDetector(nil, disease.WithPicker(first))
	got, _ := d.Detect(context.Background(), disease.Image{Filename: "rice.jpg"})
	got.Remedies[0] = "mutated"

	again, _ := d.Detect(context.Background(), disease.Image{Filename: "rice.jpg"})
	if again.Remedies[0] == "mutated" {
		t.Error("mutating a diagnosis changed the table")
	}
}

func TestNewTableErrors(t *testing.T) {
	entry := disease.Entry{Diagnosis: disease.Diagnosis{ID: "a", Name: "A"}}

	tests := []struct {
		name     string
		entries  []disease.Entry
		keywords []disease.KeywordGroup
		wantErr  error
	}{
		{name: "empty", wantErr: disease.ErrEmptyTable},
		{name: "duplicate", entries: []disease.Entry{entry, entry}},
		{name: "missing id", entries: []disease.Entry{{Diagnosis: disease.Diagnosis{Name: "x"}}}},
		{name: "negative weight", entries: []disease.Entry{{Diagnosis: entry.Diagnosis, Weight: -1}}},
		{
			name:     "unknown disease in keywords",
			entries:  []disease.Entry{entry},
			keywords: []disease.KeywordGroup{{Kind: disease.KindPlant, Words: []string{"x"}, Diseases: []string{"b"}}},
		},
		{
			name:     "unknown kind",
			entries:  []disease.Entry{entry},
			keywords: []disease.KeywordGroup{{Kind: "colour", Words: []string{"x"}, Diseases: []string{"a"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := disease.NewTable(tt.entries, tt.keywords)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPlantGroupsMatchFirst(t *testing.T) {
	tbl, err := disease.NewTable(
		[]disease.Entry{
			{Diagnosis: disease.Diagnosis{ID: "leaf_rot"}},
			{Diagnosis: disease.Diagnosis{ID: "bean_wilt"}},
		},
		[]disease.KeywordGroup{
			{Kind: disease.KindDisease, Words: []string{"ROT"}, Diseases: []string{"leaf_rot"}},
			{Kind: disease.KindPlant, Words: []string{"bean"}, Diseases: []string{"bean_wilt"}},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"bean_wilt", "leaf_rot"}, tbl.Candidates("bean_rot.png")); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectEmptyDetector(t *testing.T) {
	d := disease.NewDetector(&disease.Table{})
	if _, err := d.Detect(context.Background(), disease.Image{}); !errors.Is(err, disease.ErrEmptyTable) {
		t.Errorf("expected ErrEmptyTable, got %v", err)
	}
}
