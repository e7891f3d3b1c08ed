package dict

import (
	"context"
	"testing"
)

var (
	benchmarkLabel string
	benchmarkOK    bool
	benchmarkOpts  []Option
)

func BenchmarkResolveValueLabel(b *testing.B) {
	r := NewStaticResolver(map[string]map[string]string{
		"locale": {"en": "English", "de": "German", "fr": "French", "ja": "Japanese", "zh": "Chinese"},
	})
	if err := RegisterResolver(r); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		label, ok, err := ResolveValueLabel(ctx, "locale", "ja")
		if err != nil {
			b.Fatal(err)
		}
		benchmarkLabel = label
		benchmarkOK = ok
	}
}

func BenchmarkListOptions(b *testing.B) {
	r := NewStaticResolver(map[string]map[string]string{
		"locale": {"en": "English", "de": "German", "fr": "French", "ja": "Japanese", "zh": "Chinese"},
	})
	if err := RegisterResolver(r); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		opts, err := ListOptions(ctx, "locale")
		if err != nil {
			b.Fatal(err)
		}
		benchmarkOpts = opts
	}
}
