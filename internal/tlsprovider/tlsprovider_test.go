package tlsprovider

import (
	"errors"
	"testing"
)

func TestInit_ThenGet(t *testing.T) {
	reset()
	defer reset()

	if err := Init(); err != nil {
		t.Fatalf("Init() = %v, want nil", err)
	}
	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if cfg == nil {
		t.Fatal("Get() returned nil config")
	}
}

func TestInit_Twice(t *testing.T) {
	reset()
	defer reset()

	if err := Init(); err != nil {
		t.Fatalf("first Init() = %v, want nil", err)
	}
	if err := Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() = %v, want ErrAlreadyInitialized", err)
	}
}

func TestGet_BeforeInit(t *testing.T) {
	reset()
	defer reset()

	if _, err := Get(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Get() before Init() = %v, want ErrNotInitialized", err)
	}
}

func TestGet_ReturnsIndependentClones(t *testing.T) {
	reset()
	defer reset()

	Init()
	a, _ := Get()
	b, _ := Get()
	a.ServerName = "one.example.com"
	if b.ServerName == "one.example.com" {
		t.Error("mutating one Get() result affected another")
	}
}
