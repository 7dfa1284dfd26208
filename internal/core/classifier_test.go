package core

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		objectID  string
		wantKey   int64
		wantCat   ObjectCategory
		wantAssoc int64
		wantErr   error
	}{
		{
			name:      "official marker",
			objectID:  "MGI:98765",
			wantKey:   7001,
			wantCat:   CategoryMarker,
			wantAssoc: 1018,
		},
		{
			name:      "public strain",
			objectID:  "MGI:22222",
			wantKey:   8001,
			wantCat:   CategoryStrain,
			wantAssoc: 1031,
		},
		{
			name:      "approved allele",
			objectID:  "MGI:33333",
			wantKey:   9001,
			wantCat:   CategoryAllele,
			wantAssoc: 1013,
		},
		{
			name:      "surrounding whitespace ignored",
			objectID:  " MGI:98765 ",
			wantKey:   7001,
			wantCat:   CategoryMarker,
			wantAssoc: 1018,
		},
		{
			name:     "unknown id",
			objectID: "MGI:00000",
			wantErr:  ErrInvalidObject,
		},
		{
			name:     "empty id",
			objectID: "",
			wantErr:  ErrInvalidObject,
		},
		{
			name:     "id in two categories",
			objectID: "MGI:44444",
			wantErr:  ErrAmbiguousObject,
		},
		{
			name:     "two objects in one category",
			objectID: "MGI:55555",
			wantErr:  ErrAmbiguousObject,
		},
	}

	backend := newFakeBackend()
	backend.objects[CategoryMarker]["MGI:44444"] = []int64{7100}
	backend.objects[CategoryAllele]["MGI:44444"] = []int64{9100}
	backend.objects[CategoryStrain]["MGI:55555"] = []int64{8100, 8101}
	classifier := NewClassifier(backend)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifier.Classify(context.Background(), tt.objectID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify(%q) error = %v, want %v", tt.objectID, err, tt.wantErr)
				}
				var ce *ClassifyError
				if !errors.As(err, &ce) {
					t.Fatalf("Classify(%q) error type = %T, want *ClassifyError", tt.objectID, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify(%q) unexpected error: %v", tt.objectID, err)
			}
			if got.ObjectKey != tt.wantKey || got.Category != tt.wantCat || got.AssocTypeKey != tt.wantAssoc {
				t.Errorf("Classify(%q) = %+v, want key %d category %v assoc %d",
					tt.objectID, got, tt.wantKey, tt.wantCat, tt.wantAssoc)
			}
		})
	}
}

func TestClassify_QueriesEveryCategory(t *testing.T) {
	backend := newFakeBackend()
	if _, err := NewClassifier(backend).Classify(context.Background(), "MGI:98765"); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	want := []string{
		"object:marker:MGI:98765",
		"object:strain:MGI:98765",
		"object:allele:MGI:98765",
	}
	if len(backend.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", backend.calls, want)
	}
	for i := range want {
		if backend.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, backend.calls[i], want[i])
		}
	}
}

func TestClassify_BackendErrorIsNotInvalidObject(t *testing.T) {
	backend := newFakeBackend()
	backend.lookupErr = errors.New("connection refused")

	_, err := NewClassifier(backend).Classify(context.Background(), "MGI:98765")
	if err == nil {
		t.Fatal("Classify() error = nil, want backend error")
	}
	if errors.Is(err, ErrInvalidObject) || errors.Is(err, ErrAmbiguousObject) {
		t.Errorf("backend failure classified as data defect: %v", err)
	}
}

func TestCategoryCodes(t *testing.T) {
	tests := []struct {
		category  ObjectCategory
		mgiType   int64
		assocType int64
	}{
		{CategoryMarker, 2, 1018},
		{CategoryStrain, 10, 1031},
		{CategoryAllele, 11, 1013},
	}
	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			if got := tt.category.MGITypeKey(); got != tt.mgiType {
				t.Errorf("MGITypeKey() = %d, want %d", got, tt.mgiType)
			}
			if got := tt.category.AssocTypeKey(); got != tt.assocType {
				t.Errorf("AssocTypeKey() = %d, want %d", got, tt.assocType)
			}
		})
	}

	if ObjectCategory(99).Valid() {
		t.Error("ObjectCategory(99).Valid() = true, want false")
	}
}
