package dict

import (
	"context"
	"errors"
	"testing"
)

type resolverStub struct{}

func (resolverStub) ResolveValueLabel(context.Context, string, string) (string, bool, error) {
	return "English", true, nil
}

func (resolverStub) ListOptions(context.Context, string) ([]Option, error) {
	return []Option{{Code: "en", Label: "English"}}, nil
}

type nilResolver struct{}

func (*nilResolver) ResolveValueLabel(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (*nilResolver) ListOptions(context.Context, string) ([]Option, error) {
	return nil, nil
}

func TestResolverRegistry(t *testing.T) {
	registry.mu.Lock()
	registry.r = nil
	registry.mu.Unlock()

	if err := RegisterResolver(nil); err == nil {
		t.Fatal("expected error")
	}
	var typedNil *nilResolver
	if err := RegisterResolver(typedNil); err == nil {
		t.Fatal("expected typed nil error")
	}
	if _, _, err := ResolveValueLabel(context.Background(), "locale", "en"); !errors.Is(err, errResolverNotConfigured) {
		t.Fatalf("err=%v", err)
	}
	if _, err := ListOptions(context.Background(), "locale"); !errors.Is(err, errResolverNotConfigured) {
		t.Fatalf("err=%v", err)
	}

	if err := RegisterResolver(resolverStub{}); err != nil {
		t.Fatalf("register err=%v", err)
	}
	label, ok, err := ResolveValueLabel(context.Background(), " locale ", " en ")
	if err != nil || !ok || label != "English" {
		t.Fatalf("label=%q ok=%v err=%v", label, ok, err)
	}
	options, err := ListOptions(context.Background(), " locale ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(options) != 1 || options[0].Code != "en" {
		t.Fatalf("options=%+v", options)
	}
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]map[string]string{
		"locale": {"en": "English", "de": "German", "ja": "Japanese"},
	})

	label, ok, err := r.ResolveValueLabel(context.Background(), "locale", "de")
	if err != nil || !ok || label != "German" {
		t.Fatalf("label=%q ok=%v err=%v", label, ok, err)
	}
	_, ok, err = r.ResolveValueLabel(context.Background(), "locale", "xx")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	_, ok, err = r.ResolveValueLabel(context.Background(), "currency", "en")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	options, err := r.ListOptions(context.Background(), "locale")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(options) != 3 || options[0].Code != "de" || options[1].Code != "en" || options[2].Code != "ja" {
		t.Fatalf("options=%+v", options)
	}

	options, err = r.ListOptions(context.Background(), "currency")
	if err != nil || options != nil {
		t.Fatalf("options=%+v err=%v", options, err)
	}
}

func TestStaticResolver_CopiesInput(t *testing.T) {
	values := map[string]map[string]string{"locale": {"en": "English"}}
	r := NewStaticResolver(values)
	values["locale"]["en"] = "mutated"
	values["locale"]["xx"] = "injected"

	label, ok, err := r.ResolveValueLabel(context.Background(), "locale", "en")
	if err != nil || !ok || label != "English" {
		t.Fatalf("label=%q ok=%v err=%v", label, ok, err)
	}
	if _, ok, _ := r.ResolveValueLabel(context.Background(), "locale", "xx"); ok {
		t.Fatal("expected injected code to be absent")
	}
}
