package storage

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestInstallCopiesStagedImage(t *testing.T) {
	staging := NewMemory(16*1024, 4096, 4)
	stage := newTestFlash(t, staging, 16*1024)
	if err := stage.Erase(testBase); err != nil {
		t.Fatal(err)
	}
	image := pattern(1024+128+128, 11)
	if err := stage.Write(testBase, image); err != nil {
		t.Fatal(err)
	}

	// The destination holds an older application that must be replaced
	app := NewMemory(8192, 4096, 256)
	if _, err := app.WriteAt(make([]byte, 8192), 0); err != nil {
		t.Fatal(err)
	}
	dst, err := NewFlash(app, 0x10020000, 8192)
	if err != nil {
		t.Fatal(err)
	}

	if err := Install(dst, staging, uint32(len(image))); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	got := app.Bytes()
	if !bytes.Equal(got[:len(image)], image) {
		t.Error("installed image differs from staged image")
	}
	for i := len(image); i < len(got); i++ {
		if got[i] != ErasedByte {
			t.Fatalf("byte %d after image = 0x%02X, want erased", i, got[i])
		}
	}
}

func TestInstallErrors(t *testing.T) {
	staging := NewMemory(16*1024, 4096, 4)
	dst := newTestFlash(t, NewMemory(4096, 4096, 4), 4096)

	tests := []struct {
		name string
		size uint32
		want error
	}{
		{"empty", 0, ErrSize},
		{"unaligned", 130, ErrAlignment},
		{"too big", 8192, ErrSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Install(dst, staging, tt.size); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
