package protocol

import (
	"testing"
)

func TestAuthRequest_Marshal(t *testing.T) {
	t.Parallel()

	data, err := AuthRequest{Name: "laptop", Token: "secret"}.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := `{"name":"laptop","token":"secret"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestClip_MarshalParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []Clip{
		{Text: "hello", Timestamp: 1000},
		{Text: "", Timestamp: 0},
		{Text: "日本語 🎉", Timestamp: 1234567890},
	}
	for _, tt := range tests {
		data, err := tt.Marshal()
		if err != nil {
			t.Fatalf("Marshal(%+v) error: %v", tt, err)
		}
		got, err := ParseClip(data)
		if err != nil {
			t.Fatalf("ParseClip(%s) error: %v", data, err)
		}
		if got != tt {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, tt)
		}
	}
}

func TestParseAuthReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    AuthReply
		wantErr bool
	}{
		{"success true", `{"success":true}`, AuthReply{Success: true}, false},
		{"success false", `{"success":false}`, AuthReply{Success: false}, false},
		{"missing field", `{}`, AuthReply{}, true},
		{"wrong type", `{"success":"yes"}`, AuthReply{}, true},
		{"malformed json", `{not json`, AuthReply{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthReply([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAuthReply(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAuthReply(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestParseClip_MissingFields(t *testing.T) {
	t.Parallel()

	tests := []string{
		`{}`,
		`{"text":"hi"}`,
		`{"timestamp":100}`,
		`{"success":true}`,
	}
	for _, data := range tests {
		if _, err := ParseClip([]byte(data)); err == nil {
			t.Errorf("ParseClip(%q) error = nil, want error", data)
		}
	}
}

func TestClassifyApplicationFrame(t *testing.T) {
	t.Parallel()

	clip, err := ClassifyApplicationFrame([]byte(`{"text":"hi","timestamp":42}`))
	if err != nil {
		t.Fatalf("ClassifyApplicationFrame() error: %v", err)
	}
	if clip != (Clip{Text: "hi", Timestamp: 42}) {
		t.Errorf("ClassifyApplicationFrame() = %+v", clip)
	}

	if _, err := ClassifyApplicationFrame([]byte(`{"success":true}`)); err == nil {
		t.Error("ClassifyApplicationFrame() on auth reply shape = nil error, want error")
	}
	if _, err := ClassifyApplicationFrame([]byte(`not json`)); err == nil {
		t.Error("ClassifyApplicationFrame() on malformed JSON = nil error, want error")
	}
}
