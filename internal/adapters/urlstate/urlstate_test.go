package urlstate

import (
	"reflect"
	"testing"
)

func TestGet_DistinguishesAbsentFromEmpty(t *testing.T) {
	q := New("mode=bus&stop=")

	if v, ok := q.Get("mode"); !ok || v != "bus" {
		t.Errorf("Get(mode) = %q, %v", v, ok)
	}
	if v, ok := q.Get("stop"); !ok || v != "" {
		t.Errorf("present-but-empty key must report ok, got %q, %v", v, ok)
	}
	if _, ok := q.Get("line"); ok {
		t.Error("absent key must report !ok")
	}
}

func TestValues_RepeatedKeys(t *testing.T) {
	q := New("line=550&line=18&dest=Pasila")

	if got := q.Values("line"); !reflect.DeepEqual(got, []string{"550", "18"}) {
		t.Errorf("Values(line) = %v", got)
	}
}

func TestReplace_SwapsWholeQuery(t *testing.T) {
	q := New("mode=bus&stop=HSL:1234&line=550")

	q.Replace([][2]string{{"mode", "rail"}, {"helsinkiOnly", "1"}})

	if _, ok := q.Get("stop"); ok {
		t.Error("Replace must drop parameters not in the new set")
	}
	if v, _ := q.Get("mode"); v != "rail" {
		t.Errorf("mode = %q", v)
	}
	if got := q.Encode(); got != "helsinkiOnly=1&mode=rail" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestNew_MalformedQueryYieldsEmptyState(t *testing.T) {
	q := New("%zz=broken")
	if _, ok := q.Get("mode"); ok {
		t.Error("malformed query must hydrate as empty")
	}
}
