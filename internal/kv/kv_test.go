package kv

import (
	"fmt"
	"sort"
	"testing"
)

func TestKey(t *testing.T) {
	if got := Key("votes", "u1", "s1"); got != "votes:u1:s1" {
		t.Fatalf("Key = %q", got)
	}
}

func TestWriteSetOverlay(t *testing.T) {
	w := newWriteSet()
	w.set("p:changed", []byte("new"))
	w.delete("p:gone")
	w.set("p:added", []byte("added"))
	w.set("other:x", []byte("x"))

	committed := []Entry{
		{Key: "p:kept", Value: []byte("kept")},
		{Key: "p:changed", Value: []byte("old")},
		{Key: "p:gone", Value: []byte("gone")},
	}

	got := map[string]string{}
	for _, e := range w.overlay("p:", committed) {
		got[e.Key] = string(e.Value)
	}

	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[p:added p:changed p:kept]" {
		t.Fatalf("overlay keys = %v", keys)
	}
	if got["p:changed"] != "new" {
		t.Fatalf("p:changed = %q, want buffered value", got["p:changed"])
	}
}

func TestWriteSetSetAfterDelete(t *testing.T) {
	w := newWriteSet()
	w.delete("k")
	w.set("k", nil)

	v, deleted, ok := w.lookup("k")
	if !ok || deleted || v == nil {
		t.Fatalf("lookup = %q, %v, %v; want empty non-deleted value", v, deleted, ok)
	}
	if len(w.order) != 1 {
		t.Fatalf("order = %v, want single entry", w.order)
	}
}
