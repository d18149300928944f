package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestProviderRequestValidation(t *testing.T) {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		t.Fatalf("expect no err, got %v", err)
	}

	zero := 0
	tests := []struct {
		name string
		req  ProviderRequest
		ok   bool
	}{
		{"valid", ProviderRequest{PathTemplate: "{z}/{x}/{y}.png", TileSize: 256, FloorZoom: &zero, OutputFormat: "jpeg"}, true},
		{"no template", ProviderRequest{TileSize: 256, FloorZoom: &zero, OutputFormat: "png"}, true},
		{"parent dir", ProviderRequest{PathTemplate: "../secret.txt", TileSize: 256, FloorZoom: &zero, OutputFormat: "jpeg"}, false},
		{"absolute", ProviderRequest{PathTemplate: "/etc/passwd", TileSize: 256, FloorZoom: &zero, OutputFormat: "jpeg"}, false},
		{"tile too large", ProviderRequest{TileSize: 4096, FloorZoom: &zero, OutputFormat: "jpeg"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.ok && err != nil {
				t.Fatalf("expect no err, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRemoteProviderRequestValidation(t *testing.T) {
	v := validator.New()

	tests := []struct {
		url string
		ok  bool
	}{
		{"https://tile.openstreetmap.org/{z}/{x}/{y}.png", true},
		{"http://tiles.local:8080/{z}/{x}/{y}.png", true},
		{"file:///etc/{z}", false},
		{"gopher://tiles/{z}/{x}/{y}", false},
		{"tiles/{z}/{x}/{y}", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := v.Struct(RemoteProviderRequest{URLTemplate: tt.url})
			if tt.ok && err != nil {
				t.Fatalf("expect no err, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
