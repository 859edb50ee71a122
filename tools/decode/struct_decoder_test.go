package decode

import (
	"reflect"
	"testing"
)

type sample struct {
	Level   string   `mapstructure:"log_level"`
	Origins []string `mapstructure:"allowed_origins"`
	Limit   int      `mapstructure:"limit"`
	On      bool     `mapstructure:"on"`
}

func TestDecodeMap(t *testing.T) {
	out, err := DecodeMap[sample](map[string]any{
		"log_level":       "warn",
		"allowed_origins": []any{"https://a.example", 42},
		"limit":           float64(7),
		"on":              "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := sample{Level: "warn", Origins: []string{"https://a.example", "42"}, Limit: 7, On: true}
	if !reflect.DeepEqual(*out, want) {
		t.Fatalf("got %+v, want %+v", *out, want)
	}
}

func TestDecodeMapCommaList(t *testing.T) {
	out, err := DecodeMap[sample](map[string]any{"allowed_origins": " https://a , https://b ,"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Origins, []string{"https://a", "https://b"}) {
		t.Fatalf("origins = %v", out.Origins)
	}
}

func TestDecodeMapErrorUnused(t *testing.T) {
	opts := DefaultOptions()
	opts.ErrorUnused = true
	if _, err := DecodeMap[sample](map[string]any{"bogus": 1}, opts); err == nil {
		t.Fatal("unknown key accepted")
	}
}
