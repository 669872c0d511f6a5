package emotions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestListEmbedded(t *testing.T) {
	names, err := ListEmbedded()
	if err != nil {
		t.Fatalf("ListEmbedded failed: %v", err)
	}
	if len(names) != 1 || names[0] != "default" {
		t.Errorf("Expected [default], got %v", names)
	}
}

func TestLoadEmbedded(t *testing.T) {
	m, err := LoadEmbedded("default")
	if err != nil {
		t.Fatalf("LoadEmbedded(default) failed: %v", err)
	}
	if m.DefaultTag != "neutral" {
		t.Errorf("Expected default tag 'neutral', got %q", m.DefaultTag)
	}
	if len(m.Emotions) != 8 {
		t.Errorf("Expected 8 emotions, got %d", len(m.Emotions))
	}
	for _, set := range m.Emotions {
		if !set.Complete() {
			t.Errorf("Emotion %q is incomplete", set.Tag)
		}
	}
	if got := m.Emotions[0].EyesOpenMouthOpen; got != "/assets/emotions/neutral/eyes_open_mouth_open.png" {
		t.Errorf("Expected base URL applied, got %q", got)
	}
}

func TestLoadEmbedded_NotFound(t *testing.T) {
	if _, err := LoadEmbedded("nonexistent_manifest_12345"); err == nil {
		t.Error("Expected error for nonexistent manifest")
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"[happy]", "happy", false},
		{" [very_sad] ", "very_sad", false},
		{"[oh-no2]", "oh-no2", false},
		{"happy", "", true},
		{"[]", "", true},
		{"[Happy]", "", true},
		{"[two words]", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidTag) {
			t.Errorf("ParseTag(%q) error should wrap ErrInvalidTag, got %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"[happy]":   "happy",
		"HAPPY":     "happy",
		" sad ":     "sad",
		"[Excited]": "excited",
		"":          "",
		"no way":    "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if FormatTag("happy") != "[happy]" {
		t.Errorf("FormatTag mismatch: %q", FormatTag("happy"))
	}
}

func TestExtract(t *testing.T) {
	tags, text := Extract("[happy] Hello there! [wave] How are you? [not a tag]")

	if len(tags) != 2 || tags[0] != "happy" || tags[1] != "wave" {
		t.Errorf("Expected [happy wave], got %v", tags)
	}
	if text != "Hello there! How are you? [not a tag]" {
		t.Errorf("Unexpected stripped text %q", text)
	}
}

func TestImageSet_Image(t *testing.T) {
	set := ImageSet{
		EyesOpenMouthOpen:     "oo",
		EyesOpenMouthClosed:   "oc",
		EyesClosedMouthOpen:   "co",
		EyesClosedMouthClosed: "cc",
	}
	tests := []struct {
		eyesClosed, mouthClosed bool
		want                    string
	}{
		{false, false, "oo"},
		{false, true, "oc"},
		{true, false, "co"},
		{true, true, "cc"},
	}
	for _, tt := range tests {
		if got := set.Image(tt.eyesClosed, tt.mouthClosed); got != tt.want {
			t.Errorf("Image(%v, %v) = %q, want %q", tt.eyesClosed, tt.mouthClosed, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadBuiltIn(); err != nil {
		t.Fatalf("LoadBuiltIn failed: %v", err)
	}

	if count := reg.Count(); count != 8 {
		t.Errorf("Expected 8 emotions, got %d", count)
	}
	if _, err := reg.Get("[happy]"); err != nil {
		t.Errorf("Get([happy]) failed: %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if names := reg.List(); len(names) != 8 || names[0] != "angry" {
		t.Errorf("Expected 8 sorted names, got %v", names)
	}
	if matches := reg.Search("smil"); len(matches) != 2 {
		t.Errorf("Expected 2 matches for 'smil', got %v", matches)
	}
	if reg.DefaultTag() != "neutral" {
		t.Errorf("Expected default tag 'neutral', got %q", reg.DefaultTag())
	}
}

func TestRegistry_RegisterRejectsIncomplete(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(ImageSet{Tag: "half", EyesOpenMouthOpen: "a.png"})
	if !errors.Is(err, ErrInvalidEmotion) {
		t.Errorf("Expected ErrInvalidEmotion, got %v", err)
	}
}

func TestRegistry_LoadCustomDir(t *testing.T) {
	dir := t.TempDir()
	manifest := `{
		"default_tag": "calm",
		"emotions": [{
			"tag": "calm",
			"eyes_open_mouth_open": "https://cdn.example.com/calm/oo.png",
			"eyes_open_mouth_closed": "https://cdn.example.com/calm/oc.png",
			"eyes_closed_mouth_open": "https://cdn.example.com/calm/co.png",
			"eyes_closed_mouth_closed": "https://cdn.example.com/calm/cc.png"
		}]
	}`
	if err := os.WriteFile(filepath.Join(dir, "calm.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadBuiltIn(); err != nil {
		t.Fatal(err)
	}
	if err := reg.LoadCustomDir(dir); err != nil {
		t.Fatalf("LoadCustomDir failed: %v", err)
	}
	if reg.DefaultTag() != "calm" {
		t.Errorf("Expected custom default tag, got %q", reg.DefaultTag())
	}
	set, err := reg.Get("calm")
	if err != nil {
		t.Fatal(err)
	}
	if set.EyesClosedMouthClosed != "https://cdn.example.com/calm/cc.png" {
		t.Errorf("Absolute refs should be kept as-is, got %q", set.EyesClosedMouthClosed)
	}
}

func TestRegistry_LoadCustomDirInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"emotions":[{"tag":"x"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewRegistry().LoadCustomDir(dir); !errors.Is(err, ErrInvalidEmotion) {
		t.Errorf("Expected ErrInvalidEmotion, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadBuiltIn(); err != nil {
		t.Fatal(err)
	}

	set, tag, err := Resolve(reg, "[sad]", "neutral")
	if err != nil || tag != "sad" || set.Tag != "sad" {
		t.Errorf("Expected sad, got %q (%v)", tag, err)
	}

	_, tag, err = Resolve(reg, "[jubilant]", "neutral")
	if err != nil || tag != "neutral" {
		t.Errorf("Expected fallback to neutral, got %q (%v)", tag, err)
	}

	_, tag, err = Resolve(reg, "", "neutral")
	if err != nil || tag != "neutral" {
		t.Errorf("Expected empty tag to resolve to neutral, got %q (%v)", tag, err)
	}

	reg.Unregister("neutral")
	if _, _, err := Resolve(reg, "[jubilant]", "neutral"); !errors.Is(err, ErrDefaultMissing) {
		t.Errorf("Expected ErrDefaultMissing, got %v", err)
	}
}
