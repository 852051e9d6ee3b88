package static

import (
	"strings"
	"testing"
	"time"
)

func TestContentTagEmpty(t *testing.T) {
	got := ContentTag(nil)
	want := `W/"0-2jmj7l5rSw0yVb/vlWAYkK/YBwk="`
	if got != want {
		t.Errorf("ContentTag(nil) = %q, want %q", got, want)
	}
	if ContentTag([]byte{}) != want {
		t.Errorf("ContentTag(empty) = %q, want %q", ContentTag([]byte{}), want)
	}
}

func TestContentTagKnownValue(t *testing.T) {
	// SHA1("hello") = aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d,
	// base64 qvTGHdzF6KLavt4PO0gs2a6pQ00= truncated to 27 chars.
	got := ContentTag([]byte("hello"))
	want := `W/"5-qvTGHdzF6KLavt4PO0gs2a6pQ00"`
	if got != want {
		t.Errorf("ContentTag(hello) = %q, want %q", got, want)
	}
}

func TestContentTagDeterministic(t *testing.T) {
	a := ContentTag([]byte("same content"))
	b := ContentTag([]byte("same content"))
	if a != b {
		t.Errorf("ContentTag not deterministic: %q vs %q", a, b)
	}
	if a == ContentTag([]byte("other content")) {
		t.Error("ContentTag collision for different content")
	}
}

func TestMetadataTagFormat(t *testing.T) {
	mt := time.Unix(1700000000, 0)
	got := MetadataTag(10, mt)

	if !strings.HasPrefix(got, `W/"a-`) {
		t.Errorf("MetadataTag(10, ...) = %q, want size-hex prefix W/\"a-", got)
	}
	if !strings.HasSuffix(got, `"`) {
		t.Errorf("MetadataTag = %q, want closing quote", got)
	}
	if got != MetadataTag(10, mt) {
		t.Error("MetadataTag not deterministic")
	}
	if got == MetadataTag(10, mt.Add(time.Second)) {
		t.Error("MetadataTag ignores modification time")
	}
	if got == MetadataTag(11, mt) {
		t.Error("MetadataTag ignores size")
	}
}
