package services_test

import (
	"errors"
	"strings"
	"testing"

	"voxcrawl/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrExternalTool, "downloading", "fetch file", "request failed", cause)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
	for _, fragment := range []string{"downloading", "fetch file", "request failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error text %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "scraping", "", "no detail", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default marker: %v", err)
	}
}

func TestIsNothingFound(t *testing.T) {
	err := services.Wrap(services.ErrNothingFound, "scraping", "extract audio", "no voice lines on page", nil)
	if !services.IsNothingFound(err) {
		t.Fatalf("expected nothing-found classification: %v", err)
	}
	if services.IsNothingFound(errors.New("boom")) {
		t.Fatal("unrelated error must not classify as nothing-found")
	}
}
